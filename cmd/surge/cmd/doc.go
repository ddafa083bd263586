/*
Package cmd provides all the commands for the surge binary.

The commands are separated by file, one file per command. serve and the hidden worker command make up the
service, every other command except run is a client of the api and honours the --server flag.

There are a few global CLI flags that can be used to configure how surge will operate. These are defined
by the globally exposed variables. Every setting can also come from $HOME/.surge.yaml or a SURGE_ prefixed
environment variable, e.g. SURGE_STORE_DSN

Usage

	surge serve --addr 127.0.0.1:8080
	surge create --name checkout --url http://127.0.0.1:14000/ok --rate 200 --duration 30
	surge start <id>
	surge status <id> --wait

*/
package cmd
