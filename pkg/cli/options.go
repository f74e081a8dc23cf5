package cli

import (
	"bytes"
	"io"

	"github.com/esmlink/esmlink/internal/config"
	"github.com/esmlink/esmlink/internal/fs"
	"github.com/esmlink/esmlink/pkg/api"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Every flag that takes a value is empty when it wasn't passed, so a flag
// only overrides the config file when it's actually on the command line.
type flagOptions struct {
	Outdir      string   `long:"outdir" description:"Directory that output chunks are written to"`
	Sourcemap   string   `long:"sourcemap" optional:"yes" optional-value:"true" choice:"true" choice:"false" description:"Emit a source map next to each chunk"`
	TreeShaking string   `long:"tree-shaking" optional:"yes" optional-value:"true" choice:"true" choice:"false" description:"Remove code that can't affect the output (default true)"`
	Splitting   string   `long:"splitting" optional:"yes" optional-value:"true" choice:"true" choice:"false" description:"Put dynamically-imported modules in their own chunks"`
	Shared      string   `long:"shared" choice:"hoist" choice:"duplicate" description:"Placement of modules shared between chunks"`
	External    []string `long:"external" description:"Leave imports of this module in the output"`
	Metafile    string   `long:"metafile" description:"Write metadata about the build to this JSON file"`
	Concurrency int      `long:"concurrency" description:"Size of the parse and print worker pools (default: number of CPUs)"`
	Config      string   `long:"config" description:"YAML file with options that flags override"`
	Watch       bool     `long:"watch" description:"Rebuild whenever an input file changes"`
	LogLevel    string   `long:"log-level" choice:"info" choice:"warning" choice:"error" choice:"silent" description:"Disable logging below this level"`
	Color       string   `long:"color" optional:"yes" optional-value:"true" choice:"true" choice:"false" description:"Force use of color terminal escapes"`
	Timing      bool     `long:"timing" description:"Log how long each phase of the build took"`

	Positional struct {
		EntryPoints []string `positional-arg-name:"entry-points"`
	} `positional-args:"yes"`
}

// The config file uses pointers for booleans so that "false" can be told
// apart from a missing key
type fileConfig struct {
	EntryPoints []string `yaml:"entryPoints"`
	Outdir      string   `yaml:"outdir"`
	Sourcemap   *bool    `yaml:"sourcemap"`
	TreeShaking *bool    `yaml:"treeShaking"`
	Splitting   *bool    `yaml:"splitting"`
	Shared      string   `yaml:"shared"`
	External    []string `yaml:"external"`
	Metafile    string   `yaml:"metafile"`
	Concurrency int      `yaml:"concurrency"`
	LogLevel    string   `yaml:"logLevel"`
}

type cliOptions struct {
	build api.BuildOptions

	// An absolute path or URL, or empty for no metafile
	metafile string

	watch bool
}

func (c *cliContext) loadConfig(path string) (fileConfig, error) {
	file := fileConfig{}
	data, err := c.service.DownloadWithURL(c.ctx, path)
	if err != nil {
		return file, errors.Wrapf(err, "failed to read config file %v", path)
	}

	// Misspelled keys are reported instead of silently ignored
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil && err != io.EOF {
		return file, errors.Wrapf(err, "failed to parse config file %v", path)
	}
	return file, nil
}

func parseSharedModules(text string) (api.SharedModules, error) {
	policy, err := config.ParseSharedModulePolicy(text)
	if err != nil {
		return api.SharedModulesHoist, err
	}
	if policy == config.SharedModulesDuplicate {
		return api.SharedModulesDuplicate, nil
	}
	return api.SharedModulesHoist, nil
}

func parseLogLevel(text string) (api.LogLevel, error) {
	switch text {
	case "info":
		return api.LogLevelInfo, nil
	case "warning":
		return api.LogLevelWarning, nil
	case "error":
		return api.LogLevelError, nil
	case "silent":
		return api.LogLevelSilent, nil
	}
	return api.LogLevelInfo, errors.Errorf("Invalid log level %q (valid: info, warning, error, silent)", text)
}

// Paths on the command line and in the config file are relative to the
// working directory
func (c *cliContext) absPath(fsys fs.FS, path string) string {
	if path == "" || fsys.IsAbs(path) {
		return path
	}
	return fsys.Join(c.cwd, path)
}

func (c *cliContext) parseOptions(osArgs []string) (*cliOptions, error) {
	flagOpts := flagOptions{}
	parser := flags.NewParser(&flagOpts, flags.PassDoubleDash)
	if _, err := parser.ParseArgs(osArgs); err != nil {
		return nil, err
	}

	fsys := c.newFS()
	file := fileConfig{}
	if flagOpts.Config != "" {
		var err error
		if file, err = c.loadConfig(c.absPath(fsys, flagOpts.Config)); err != nil {
			return nil, err
		}
	}

	options := &cliOptions{
		build: api.DefaultBuildOptions(),
		watch: flagOpts.Watch,
	}
	build := &options.build
	build.LogLevel = api.LogLevelInfo
	build.AbsWorkingDir = c.cwd
	build.LogTiming = flagOpts.Timing

	// Apply the config file first
	build.EntryPoints = file.EntryPoints
	build.Outdir = file.Outdir
	build.External = file.External
	build.Concurrency = file.Concurrency
	options.metafile = file.Metafile
	if file.Sourcemap != nil {
		build.Sourcemap = *file.Sourcemap
	}
	if file.TreeShaking != nil {
		build.TreeShaking = *file.TreeShaking
	}
	if file.Splitting != nil {
		build.Splitting = *file.Splitting
	}
	if file.Shared != "" {
		shared, err := parseSharedModules(file.Shared)
		if err != nil {
			return nil, err
		}
		build.SharedModules = shared
	}
	if file.LogLevel != "" {
		logLevel, err := parseLogLevel(file.LogLevel)
		if err != nil {
			return nil, err
		}
		build.LogLevel = logLevel
	}

	// Then let flags override it
	if len(flagOpts.Positional.EntryPoints) > 0 {
		build.EntryPoints = flagOpts.Positional.EntryPoints
	}
	if flagOpts.Outdir != "" {
		build.Outdir = flagOpts.Outdir
	}
	if len(flagOpts.External) > 0 {
		build.External = append(append([]string{}, build.External...), flagOpts.External...)
	}
	if flagOpts.Concurrency != 0 {
		build.Concurrency = flagOpts.Concurrency
	}
	if flagOpts.Metafile != "" {
		options.metafile = flagOpts.Metafile
	}
	if flagOpts.Sourcemap != "" {
		build.Sourcemap = flagOpts.Sourcemap == "true"
	}
	if flagOpts.TreeShaking != "" {
		build.TreeShaking = flagOpts.TreeShaking == "true"
	}
	if flagOpts.Splitting != "" {
		build.Splitting = flagOpts.Splitting == "true"
	}
	if flagOpts.Shared != "" {
		shared, err := parseSharedModules(flagOpts.Shared)
		if err != nil {
			return nil, err
		}
		build.SharedModules = shared
	}
	if flagOpts.LogLevel != "" {
		logLevel, err := parseLogLevel(flagOpts.LogLevel)
		if err != nil {
			return nil, err
		}
		build.LogLevel = logLevel
	}
	switch flagOpts.Color {
	case "true":
		build.Color = api.ColorAlways
	case "false":
		build.Color = api.ColorNever
	}

	options.metafile = c.absPath(fsys, options.metafile)
	build.Metafile = options.metafile != ""

	// Only one chunk can be written to stdout, and it has nowhere to put a
	// source map
	if build.Outdir == "" {
		if build.Sourcemap {
			return nil, errors.New("Cannot use \"sourcemap\" without \"outdir\"")
		}
		if options.watch {
			return nil, errors.New("Cannot use \"watch\" without \"outdir\"")
		}
	}

	return options, nil
}
