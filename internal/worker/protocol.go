package worker

import (
	"bufio"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/francoispqt/gojay"
	"github.com/pkg/errors"
	"github.com/surgehq/surge/pkg/http"
	"github.com/surgehq/surge/pkg/loadtest"
	"github.com/surgehq/surge/pkg/log"
)

// Job is the single message sent to a worker. It carries everything the worker needs so a worker process
// does not have to read any configuration of its own
type Job struct {
	Definition       *loadtest.Definition
	HTTP             http.Config
	ProgressInterval time.Duration
}

func (j *Job) MarshalJSONObject(enc *gojay.Encoder) {
	enc.ObjectKey("definition", j.Definition)
	enc.Int64Key("timeout_ms", j.HTTP.Timeout.Milliseconds())
	enc.IntKeyOmitEmpty("max_conns_per_host", j.HTTP.MaxConnsPerHost)
	enc.BoolKeyOmitEmpty("insecure_skip_verify", j.HTTP.InsecureSkipVerify)
	enc.StringKeyOmitEmpty("user_agent", j.HTTP.UserAgent)
	enc.Int64Key("progress_interval_ms", j.ProgressInterval.Milliseconds())
}

func (j *Job) IsNil() bool {
	return j == nil
}

func (j *Job) UnmarshalJSONObject(dec *gojay.Decoder, k string) error {
	var ms int64
	switch k {
	case "definition":
		j.Definition = &loadtest.Definition{}
		return dec.Object(j.Definition)
	case "timeout_ms":
		if err := dec.Int64(&ms); err != nil {
			return err
		}
		j.HTTP.Timeout = time.Duration(ms) * time.Millisecond
	case "max_conns_per_host":
		return dec.Int(&j.HTTP.MaxConnsPerHost)
	case "insecure_skip_verify":
		return dec.Bool(&j.HTTP.InsecureSkipVerify)
	case "user_agent":
		return dec.String(&j.HTTP.UserAgent)
	case "progress_interval_ms":
		if err := dec.Int64(&ms); err != nil {
			return err
		}
		j.ProgressInterval = time.Duration(ms) * time.Millisecond
	}
	return nil
}

func (j *Job) NKeys() int {
	return 0
}

// MessageType discriminates the messages a worker writes back
type MessageType string

const (
	MessageProgress MessageType = "progress"
	MessageResult   MessageType = "result"
	MessageFault    MessageType = "fault"
)

// Message is one line of worker output. Exactly one of Progress, Result or Fault is set, according to Type
type Message struct {
	Type     MessageType
	Progress *loadtest.Progress
	Result   *loadtest.RunResult
	Fault    string
}

func (m *Message) MarshalJSONObject(enc *gojay.Encoder) {
	enc.StringKey("type", string(m.Type))
	switch m.Type {
	case MessageProgress:
		enc.ObjectKey("progress", m.Progress)
	case MessageResult:
		enc.ObjectKey("result", m.Result)
	case MessageFault:
		enc.StringKey("fault", m.Fault)
	}
}

func (m *Message) IsNil() bool {
	return m == nil
}

func (m *Message) UnmarshalJSONObject(dec *gojay.Decoder, k string) error {
	switch k {
	case "type":
		var s string
		if err := dec.String(&s); err != nil {
			return err
		}
		m.Type = MessageType(s)
	case "progress":
		m.Progress = &loadtest.Progress{}
		return dec.Object(m.Progress)
	case "result":
		m.Result = &loadtest.RunResult{}
		return dec.Object(m.Result)
	case "fault":
		return dec.String(&m.Fault)
	}
	return nil
}

func (m *Message) NKeys() int {
	return 0
}

// messageWriter serializes messages as newline delimited JSON. Progress callbacks and the final
// result may race so writes are serialized
type messageWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (mw *messageWriter) write(m *Message) error {
	data, err := gojay.MarshalJSONObject(m)
	if err != nil {
		return errors.Wrap(err, "failed to encode message")
	}
	data = append(data, '\n')

	mw.mu.Lock()
	defer mw.mu.Unlock()
	if _, err := mw.w.Write(data); err != nil {
		return errors.Wrap(err, "failed to write message")
	}
	return nil
}

func (mw *messageWriter) fault(reason string) {
	if err := mw.write(&Message{Type: MessageFault, Fault: reason}); err != nil {
		log.Error().Err(err).Str("reason", reason).Msg("failed to report fault")
	}
}

// outcome is what a reader collected from a worker's output
type outcome struct {
	result *loadtest.RunResult
	fault  string
}

// readMessages consumes worker output until EOF, forwarding progress and keeping the result or fault.
// Lines that are not valid messages are logged and skipped
func readMessages(r io.Reader, id string, onProgress loadtest.ProgressFunc) (outcome, error) {
	var (
		ret outcome
		br  = bufio.NewReader(r)
	)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 && !(len(line) == 1 && line[0] == '\n') {
			m := &Message{}
			if derr := gojay.UnmarshalJSONObject(line, m); derr != nil {
				log.Debug().Err(derr).Str("id", id).Int("len", len(line)).Msg("skipping malformed worker message")
			} else {
				switch m.Type {
				case MessageProgress:
					if onProgress != nil && m.Progress != nil {
						onProgress(*m.Progress)
					}
				case MessageResult:
					ret.result = m.Result
				case MessageFault:
					ret.fault = m.Fault
				default:
					log.Debug().Str("id", id).Str("type", string(m.Type)).Msg("unknown worker message")
				}
			}
		}
		if err == io.EOF {
			return ret, nil
		}
		if err != nil {
			return ret, errors.Wrap(err, "failed to read worker output")
		}
	}
}

func encodeJob(j *Job) ([]byte, error) {
	if j == nil || j.Definition == nil {
		return nil, fmt.Errorf("job has no definition")
	}
	data, err := gojay.MarshalJSONObject(j)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode job")
	}
	return data, nil
}
