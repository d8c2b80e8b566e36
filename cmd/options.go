package main

// Options is the root command. The struct tags are interpreted by
// github.com/jessevdk/go-flags.
type Options struct {
	Config  string     `short:"c" long:"config" description:"config YAML path" default:"./configs/config.yaml"`
	Verbose bool       `short:"v" long:"verbose" description:"debug logging"`
	Serve   ServeCmd   `command:"serve" description:"Start the HTTP server"`
	Extract ExtractCmd `command:"extract" description:"Extract JSON from a document using a JSON schema"`
	Models  ModelsCmd  `command:"models" description:"List the configured models"`
	Runs    RunsCmd    `command:"runs" description:"List recorded extraction runs"`
}

var opts Options

type ServeCmd struct {
	Addr string `short:"a" long:"addr" description:"listen address, overrides server.addr"`
}

type ExtractCmd struct {
	File      string `short:"f" long:"file" description:"document to read (pdf, docx, pptx, xlsx, md, txt)"`
	URL       string `short:"u" long:"url" description:"URL of a PDF document"`
	Text      string `short:"t" long:"text" description:"text to extract from"`
	Model     string `short:"m" long:"model" description:"model identifier" required:"true"`
	Schema    string `short:"s" long:"schema" description:"path to the JSON schema file" required:"true"`
	Refine    bool   `short:"r" long:"refine" description:"extract chunk by chunk"`
	ChunkSize int    `long:"chunk-size" description:"refine chunk size in runes"`
	Overlap   int    `long:"overlap" description:"refine chunk overlap in runes"`
}

type ModelsCmd struct{}

type RunsCmd struct {
	Model string `short:"m" long:"model" description:"only runs of this model"`
	Limit int    `short:"n" long:"limit" description:"number of runs" default:"20"`
}
