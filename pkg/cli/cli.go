// This package implements the command-line interface. Input files and output
// chunks go through afs, so the working directory, entry points, and output
// directory can be local paths or URLs of any storage afs supports.
package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/esmlink/esmlink/internal/fs"
	"github.com/esmlink/esmlink/internal/logger"
	"github.com/esmlink/esmlink/pkg/api"
	"github.com/pkg/errors"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
)

type cliContext struct {
	ctx     context.Context
	service afs.Service
	cwd     string
	stdout  io.Writer
}

// Returns the exit code. In watch mode this only returns once watching fails.
func Run(osArgs []string) int {
	cwd, err := os.Getwd()
	if err != nil {
		logger.PrintErrorToStderr(osArgs, fmt.Sprintf(
			"Cannot get the current working directory: %s", err.Error()))
		return 1
	}

	c := &cliContext{
		ctx:     context.Background(),
		service: afs.New(),
		cwd:     cwd,
		stdout:  os.Stdout,
	}
	return c.run(osArgs)
}

func (c *cliContext) run(osArgs []string) int {
	options, err := c.parseOptions(osArgs)
	if err != nil {
		logger.PrintErrorToStderr(osArgs, err.Error())
		return 1
	}

	result, ok := c.buildAndWrite(osArgs, options)
	if !options.watch {
		if !ok {
			return 1
		}
		return 0
	}

	if err := c.watch(osArgs, options, result.Inputs); err != nil {
		logger.PrintErrorToStderr(osArgs, err.Error())
		return 1
	}
	return 0
}

// Directory listings are cached per file system, so every build gets a new
// one and sees files that were added since the last build
func (c *cliContext) newFS() fs.FS {
	return fs.AFS(c.ctx, c.service, c.cwd)
}

func (c *cliContext) buildAndWrite(osArgs []string, options *cliOptions) (api.BuildResult, bool) {
	buildOptions := options.build
	buildOptions.FS = c.newFS()

	// Errors were already logged by the build
	result := api.Build(buildOptions)
	if len(result.Errors) > 0 {
		return result, false
	}

	if err := c.writeOutputs(options, &result); err != nil {
		logger.PrintErrorToStderr(osArgs, err.Error())
		return result, false
	}
	return result, true
}

func (c *cliContext) upload(path string, contents []byte) error {
	if err := c.service.Upload(c.ctx, path, file.DefaultFileOsMode, bytes.NewReader(contents)); err != nil {
		return errors.Wrapf(err, "failed to write %v", path)
	}
	return nil
}

func (c *cliContext) writeOutputs(options *cliOptions, result *api.BuildResult) error {
	if options.build.Outdir == "" {
		// Special-case writing to stdout
		if count := len(result.OutputChunks); count != 1 {
			return errors.Errorf("Must use \"outdir\" when there are %d output files", count)
		}
		if _, err := c.stdout.Write(result.OutputChunks[0].Contents); err != nil {
			return errors.Wrap(err, "failed to write to stdout")
		}
	} else {
		for _, chunk := range result.OutputChunks {
			if err := c.upload(chunk.AbsPath, chunk.Contents); err != nil {
				return err
			}
			if len(chunk.SourceMap) > 0 {
				if err := c.upload(chunk.AbsPath+".map", chunk.SourceMap); err != nil {
					return err
				}
			}
		}
	}

	if options.metafile != "" {
		return c.upload(options.metafile, []byte(result.Metafile))
	}
	return nil
}
