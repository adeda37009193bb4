package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	grpcapi "github.com/kennethnrk/fasttext-services/internal/api/grpc"
	"github.com/kennethnrk/fasttext-services/internal/common/constants"
	"github.com/kennethnrk/fasttext-services/internal/dataset"
	"github.com/kennethnrk/fasttext-services/internal/service"
)

type options struct {
	addr    string
	service string
	input   string
	timeout time.Duration
	status  bool
}

func main() {
	var opts options
	flag.StringVar(&opts.addr, "addr", "localhost:50051", "address of the fasttext host")
	flag.StringVar(&opts.service, "s", string(constants.ServiceKindLanguageDetection), "name of the service to run")
	flag.StringVar(&opts.input, "in", "-", "JSON file holding the Data dataset, - for stdin")
	flag.DurationVar(&opts.timeout, "timeout", 30*time.Second, "call timeout")
	flag.BoolVar(&opts.status, "status", false, "print the state of every service and exit")
	flag.Parse()

	if err := run(opts, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options, stdin io.Reader, stdout io.Writer) error {
	client, err := grpcapi.Dial(opts.addr)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")

	if opts.status {
		report, err := client.Status(ctx)
		if err != nil {
			return fmt.Errorf("status: %w", err)
		}
		return enc.Encode(report)
	}

	data, err := readDataset(opts.input, stdin)
	if err != nil {
		return err
	}
	outputs, err := client.Process(ctx, opts.service, service.Inputs{constants.DatasetData: data})
	if err != nil {
		return fmt.Errorf("process %s: %w", opts.service, err)
	}
	results, ok := outputs[constants.DatasetResults]
	if !ok {
		return errors.New("reply has no Results dataset")
	}
	return enc.Encode(results)
}

// readDataset decodes a records array or split object from path, or from
// stdin when path is "-".
func readDataset(path string, stdin io.Reader) (*dataset.Dataset, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	var d dataset.Dataset
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	return &d, nil
}
