package track

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/bouthilx/track/internal/capture"
	"github.com/bouthilx/track/internal/config"
	"github.com/bouthilx/track/internal/versioning"
	"github.com/bouthilx/track/logger"
	"github.com/bouthilx/track/persistence"
	"github.com/bouthilx/track/structure"
)

// Options configures a client. Zero values resolve through the environment
// and config file, then the built-in defaults.
type Options struct {
	// Backend names the logger backend ("none", "otlp").
	Backend string

	// Storage is the storage URI. A ${project} placeholder is substituted
	// with the project name when the project is set.
	Storage string

	// OTLPEndpoint and OTLPInsecure configure the otlp backend.
	OTLPEndpoint string
	OTLPInsecure bool

	// CaptureLines bounds how much console output CaptureOutput keeps.
	CaptureLines int

	// Writer receives the report digest. Defaults to standard output.
	Writer io.Writer
}

// Client tracks a single trial being run. It owns the trial, a logger bound
// to it and a lazily opened storage; every logger operation is available
// directly on the client.
type Client struct {
	*logger.Logger

	opts    Options
	trial   *structure.Trial
	project *structure.Project
	group   *structure.TrialGroup
	storage persistence.Storage
	capture *capture.Ring
	writer  io.Writer
}

// NewClient builds a client, resolving unset options from the environment
// and config file. The trial starts out stamped with the default code
// version.
func NewClient(opts Options) (*Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if opts.Backend == "" {
		opts.Backend = cfg.Backend
	}
	if opts.Storage == "" {
		opts.Storage = cfg.Storage
	}
	if opts.OTLPEndpoint == "" {
		opts.OTLPEndpoint = cfg.OTLPEndpoint
		opts.OTLPInsecure = opts.OTLPInsecure || cfg.OTLPInsecure
	}
	if opts.CaptureLines == 0 {
		opts.CaptureLines = cfg.CaptureLines
	}
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}

	backend, err := logger.Build(context.Background(), opts.Backend, logger.Options{
		Endpoint: opts.OTLPEndpoint,
		Insecure: opts.OTLPInsecure,
	})
	if err != nil {
		if errors.Is(err, logger.ErrUnknownBackend) {
			return nil, err
		}
		// A collector being down should not kill the experiment.
		logrus.Warnf("logger backend %q unavailable, tracking locally: %v", opts.Backend, err)
		backend = logger.NewNoop()
	}

	trial := structure.NewTrial()
	trial.Version = versioning.DefaultVersion()

	return &Client{
		Logger: logger.New(trial, backend),
		opts:   opts,
		trial:  trial,
		writer: opts.Writer,
	}, nil
}

// Storage reports the opened storage, nil before SetStore or SetProject.
func (c *Client) Storage() persistence.Storage {
	return c.storage
}

// Project reports the project the trial is registered under.
func (c *Client) Project() *structure.Project {
	return c.project
}

// Group reports the trial group, nil when none was set.
func (c *Client) Group() *structure.TrialGroup {
	return c.group
}

// SetStore opens the storage behind a URI. The project name, when known,
// replaces the ${project} placeholder. An already opened storage is kept
// unless force is set.
func (c *Client) SetStore(uri, project string, force bool) error {
	if c.storage != nil && !force {
		return nil
	}
	if project == "" && c.project != nil {
		project = c.project.Name
	}

	storage, err := persistence.Open(context.Background(), persistence.SubstituteProject(uri, project))
	if err != nil {
		return err
	}
	if c.storage != nil {
		if err := c.storage.Close(); err != nil {
			logrus.Warnf("closing replaced storage: %v", err)
		}
	}
	c.storage = storage
	return nil
}

// SetVersion stamps the trial with an explicit code version.
func (c *Client) SetVersion(version string) {
	c.trial.Version = version
}

// SetVersionFunc stamps the trial with a caller-computed version.
func (c *Client) SetVersionFunc(fn func() string) {
	c.trial.Version = fn()
}

// SetProject registers the trial under a named project, creating the
// project on first use. Calling it again with the same name resolves to the
// same project.
func (c *Client) SetProject(name, description string, tags map[string]string) (*structure.Project, error) {
	if err := c.SetStore(c.opts.Storage, name, false); err != nil {
		return nil, err
	}

	var project *structure.Project
	if name != "" {
		var err error
		project, err = c.storage.GetProjectByName(name)
		if err != nil {
			return nil, err
		}
	}

	if project == nil {
		if name == "" {
			return nil, fmt.Errorf("set project: %w", persistence.ErrNameRequired)
		}
		project = structure.NewProject(name, description, tags)
		if err := c.storage.InsertProject(project); err != nil {
			return nil, err
		}
	}

	c.trial.ProjectID = project.UID
	c.project = project
	c.Logger.SetProject(project)

	if err := c.storage.InsertTrial(c.trial); err != nil {
		return nil, err
	}
	return project, nil
}

// SetGroup registers the trial under a named group of the current project,
// creating the group on first use. The project must be set first.
func (c *Client) SetGroup(name, description string, tags map[string]string) (*structure.TrialGroup, error) {
	if c.project == nil {
		return nil, fmt.Errorf("set group %q: %w", name, persistence.ErrNoProject)
	}

	var group *structure.TrialGroup
	for _, gid := range c.project.Groups {
		g, err := c.storage.GetGroup(gid)
		if err != nil {
			return nil, err
		}
		if g == nil {
			return nil, fmt.Errorf("set group %q: group %s: %w", name, gid, persistence.ErrInconsistent)
		}
		if g.Name == name {
			group = g
			break
		}
	}

	if group == nil {
		group = structure.NewTrialGroup(name, description, tags)
		group.ProjectID = c.project.UID
		if err := c.storage.InsertGroup(group); err != nil {
			return nil, err
		}
	}

	c.trial.GroupID = group.UID
	c.group = group
	group.Trials = append(group.Trials, c.trial.UID)
	c.Logger.SetGroup(group)
	return group, nil
}

// LogCode snapshots the calling source file into the trial metadata.
func (c *Client) LogCode() error {
	_, file, _, ok := runtime.Caller(1)
	if !ok {
		return errors.New("log code: caller unknown")
	}

	code, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("log code: %w", err)
	}
	digest, err := versioning.HashFile(file)
	if err != nil {
		return fmt.Errorf("log code: %w", err)
	}

	c.trial.Metadata["code_file"] = file
	c.trial.Metadata["code"] = string(code)
	c.trial.Metadata["code_hash"] = digest
	return nil
}

// CaptureOutput returns a writer that forwards to dst while remembering the
// last lines written through it. The captured tail lands in the trial
// metadata when the run finishes. dst may be nil to only capture.
func (c *Client) CaptureOutput(dst io.Writer) io.Writer {
	c.capture = capture.New(dst, c.opts.CaptureLines)
	return c.capture
}

// Finish settles the trial. Captured output is attached before the logger
// closes the run down.
func (c *Client) Finish(runErr error) error {
	if c.capture != nil {
		c.trial.Metadata["output"] = c.capture.Lines()
	}
	return c.Logger.Finish(runErr)
}

// Report finishes the run and writes the trial digest as indented JSON.
func (c *Client) Report(short bool) error {
	if err := c.Finish(nil); err != nil {
		return err
	}

	raw, err := json.MarshalIndent(Digest(c.trial, short), "", "  ")
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	_, err = fmt.Fprintln(c.writer, string(raw))
	return err
}

// Save commits the storage. pathOverride redirects file storages to another
// destination.
func (c *Client) Save(pathOverride string) error {
	if c.storage == nil {
		return errors.New("save: no storage opened, set a project first")
	}
	return c.storage.Commit(context.Background(), pathOverride)
}
