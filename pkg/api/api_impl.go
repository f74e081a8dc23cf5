package api

import (
	"context"
	"fmt"
	"os"

	"github.com/esmlink/esmlink/internal/bundler"
	"github.com/esmlink/esmlink/internal/config"
	"github.com/esmlink/esmlink/internal/fs"
	"github.com/esmlink/esmlink/internal/graph"
	"github.com/esmlink/esmlink/internal/helpers"
	"github.com/esmlink/esmlink/internal/logger"
	"github.com/esmlink/esmlink/internal/resolver"
	"github.com/viant/afs"
)

func validateSharedModules(value SharedModules) config.SharedModulePolicy {
	switch value {
	case SharedModulesHoist:
		return config.SharedModulesHoist
	case SharedModulesDuplicate:
		return config.SharedModulesDuplicate
	default:
		panic("Invalid shared module policy")
	}
}

func validateColor(value StderrColor) logger.StderrColor {
	switch value {
	case ColorIfTerminal:
		return logger.ColorIfTerminal
	case ColorNever:
		return logger.ColorNever
	case ColorAlways:
		return logger.ColorAlways
	default:
		panic("Invalid color")
	}
}

func validateLogLevel(value LogLevel) logger.LogLevel {
	switch value {
	case LogLevelInfo:
		return logger.LevelInfo
	case LogLevelWarning:
		return logger.LevelWarning
	case LogLevelError:
		return logger.LevelError
	case LogLevelSilent:
		return logger.LevelSilent
	default:
		panic("Invalid log level")
	}
}

func validateFS(log logger.Log, options BuildOptions) fs.FS {
	if options.FS != nil {
		return options.FS
	}
	cwd := options.AbsWorkingDir
	if cwd == "" {
		var err error
		if cwd, err = os.Getwd(); err != nil {
			log.AddError(nil, logger.Range{}, logger.MsgID_None,
				fmt.Sprintf("Cannot get the current working directory: %s", err.Error()))
			cwd = "/"
		}
	}
	return fs.AFS(context.Background(), afs.New(), cwd)
}

func validatePath(fs fs.FS, path string) string {
	if path == "" || fs.IsAbs(path) {
		return path
	}
	return fs.Join(fs.Cwd(), path)
}

func convertLocation(location *logger.MsgLocation) *Location {
	if location == nil {
		return nil
	}
	return &Location{
		File:     location.File,
		Line:     location.Line,
		Column:   location.Column,
		Length:   location.Length,
		LineText: location.LineText,
	}
}

func messagesOfKind(kind logger.MsgKind, msgs []logger.Msg) []Message {
	var filtered []Message
	for _, msg := range msgs {
		if msg.Kind != kind {
			continue
		}
		var notes []Note
		for _, note := range msg.Notes {
			notes = append(notes, Note{
				Text:     note.Text,
				Location: convertLocation(note.Location),
			})
		}
		filtered = append(filtered, Message{
			ID:       logger.MsgIDToString(msg.ID),
			Text:     msg.Data.Text,
			Location: convertLocation(msg.Data.Location),
			Notes:    notes,
		})
	}
	return filtered
}

func convertChunkKind(kind graph.OutputKind) ChunkKind {
	switch kind {
	case graph.OutputDynamicImport:
		return ChunkDynamicImport
	case graph.OutputShared:
		return ChunkShared
	default:
		return ChunkEntryPoint
	}
}

func buildImpl(buildOpts BuildOptions) BuildResult {
	var log logger.Log
	if buildOpts.LogLevel == LogLevelSilent {
		log = logger.NewDeferLog()
	} else {
		log = logger.NewStderrLog(logger.OutputOptions{
			IncludeSource: true,
			Color:         validateColor(buildOpts.Color),
			LogLevel:      validateLogLevel(buildOpts.LogLevel),
		})
	}

	var timer *helpers.Timer
	if buildOpts.LogTiming {
		timer = &helpers.Timer{}
	}

	// Convert and validate the options
	realFS := validateFS(log, buildOpts)
	options := config.Options{
		EntryPoints:     make([]string, len(buildOpts.EntryPoints)),
		TreeShaking:     buildOpts.TreeShaking,
		CodeSplitting:   buildOpts.Splitting,
		SharedModules:   validateSharedModules(buildOpts.SharedModules),
		SourceMap:       buildOpts.Sourcemap,
		ExternalModules: config.MakeExternalModules(buildOpts.External),
		AbsOutputDir:    validatePath(realFS, buildOpts.Outdir),
		Concurrency:     buildOpts.Concurrency,
		LogTiming:       buildOpts.LogTiming,
		NeedsMetafile:   buildOpts.Metafile,
	}
	copy(options.EntryPoints, buildOpts.EntryPoints)

	if len(options.EntryPoints) == 0 {
		log.AddError(nil, logger.Range{}, logger.MsgID_None, "No entry points were specified")
	}
	if options.Concurrency < 0 {
		log.AddError(nil, logger.Range{}, logger.MsgID_None,
			fmt.Sprintf("Invalid concurrency %d (must be at least 0)", options.Concurrency))
	}

	res := buildOpts.Resolver
	if res == nil {
		res = resolver.NewResolver(realFS, &options)
	}
	parser := buildOpts.Parser
	if parser == nil {
		parser = bundler.DefaultASTProvider()
	}

	result := BuildResult{}
	if !log.HasErrors() {
		bundle := bundler.ScanBundle(log, realFS, res, parser, timer, options)
		for _, module := range bundle.Modules() {
			if module.Source.KeyPath.Text != "" {
				result.Inputs = append(result.Inputs, module.Source.KeyPath.Text)
			}
		}

		// Only compile if the scan succeeded
		if !log.HasErrors() {
			outputFiles := bundle.Compile(log, timer, options)
			if !log.HasErrors() {
				result.OutputChunks = make([]OutputChunk, len(outputFiles))
				for i, outputFile := range outputFiles {
					result.OutputChunks[i] = OutputChunk{
						Path:       outputFile.Path,
						AbsPath:    outputFile.AbsPath,
						Contents:   outputFile.Contents,
						SourceMap:  outputFile.SourceMap,
						Kind:       convertChunkKind(outputFile.Kind),
						EntryPoint: outputFile.EntryPoint,
					}
				}
				if options.NeedsMetafile {
					result.Metafile = bundle.GenerateMetadataJSON(outputFiles)
				}
			}
		}
	}

	timer.Log(log)
	msgs := log.Done()
	result.Errors = messagesOfKind(logger.Error, msgs)
	result.Warnings = messagesOfKind(logger.Warning, msgs)
	return result
}
