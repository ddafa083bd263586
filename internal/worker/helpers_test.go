package worker

import "github.com/francoispqt/gojay"

func gojayUnmarshal(data []byte, v gojay.UnmarshalerJSONObject) error {
	return gojay.UnmarshalJSONObject(data, v)
}
