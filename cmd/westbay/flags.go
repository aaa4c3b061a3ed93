package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vikasvdk5/WestBay/internal/runstate"
)

// requirementsFile is the YAML layout accepted by --file.
type requirementsFile struct {
	UserRequest  string                `yaml:"user_request"`
	Requirements runstate.Requirements `yaml:"requirements"`
}

// requirementsFlags describe a report on the command line.
type requirementsFlags struct {
	file           string
	topic          string
	request        string
	pages          int
	sources        int
	complexity     string
	analysis       bool
	visualizations bool
	urls           []string
}

func (f *requirementsFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.file, "file", "f", "", "YAML file with user_request and requirements")
	fl.StringVarP(&f.topic, "topic", "t", "", "report topic")
	fl.StringVarP(&f.request, "request", "r", "", "free-text request (defaults to the topic)")
	fl.IntVar(&f.pages, "pages", runstate.DefaultPageCount, "target page count")
	fl.IntVar(&f.sources, "sources", runstate.DefaultSourceCount, "number of sources to collect")
	fl.StringVar(&f.complexity, "complexity", string(runstate.ComplexityMedium), "simple, medium or complex")
	fl.BoolVar(&f.analysis, "analysis", true, "include an analysis section")
	fl.BoolVar(&f.visualizations, "visualizations", true, "include charts")
	fl.StringSliceVar(&f.urls, "url", nil, "source URL to scrape (repeatable)")
}

// resolve builds the requirements from --file, if given, with explicitly
// set flags taking precedence.
func (f *requirementsFlags) resolve(cmd *cobra.Command) (runstate.Requirements, string, error) {
	var req runstate.Requirements
	request := f.request

	if f.file != "" {
		data, err := os.ReadFile(f.file)
		if err != nil {
			return req, "", fmt.Errorf("reading requirements file: %w", err)
		}
		var rf requirementsFile
		if err := yaml.Unmarshal(data, &rf); err != nil {
			return req, "", fmt.Errorf("parsing requirements file: %w", err)
		}
		req = rf.Requirements
		if request == "" {
			request = rf.UserRequest
		}
	} else {
		req = runstate.DefaultRequirements("")
	}

	changed := cmd.Flags().Changed
	if f.topic != "" {
		req.Topic = f.topic
	}
	if changed("pages") {
		req.PageCount = f.pages
	}
	if changed("sources") || f.file == "" {
		req.SourceCount = f.sources
	}
	if changed("complexity") {
		req.Complexity = runstate.ParseComplexity(f.complexity)
	}
	if changed("analysis") || f.file == "" {
		req.IncludeAnalysis = f.analysis
	}
	if changed("visualizations") || f.file == "" {
		req.IncludeVisualizations = f.visualizations
	}
	if len(f.urls) > 0 {
		req.URLs = f.urls
	}

	if req.Topic == "" {
		return req, "", errors.New("a topic is required: use --topic or --file")
	}
	if request == "" {
		request = req.Topic
	}
	return req.Normalize(), request, nil
}
