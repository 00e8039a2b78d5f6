package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/yungbote/coursehub-backend/internal/app"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	once    sync.Once
	toolkit *app.Toolkit
	err     error
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{configFlag: configFlag, jsonFlag: jsonFlag}
}

func (c *commandContext) open(ctx context.Context) (*app.Toolkit, error) {
	c.once.Do(func() {
		path := ""
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.toolkit, c.err = app.OpenToolkit(ctx, path)
	})
	return c.toolkit, c.err
}

// withToolkit opens the service layer once per process and runs fn against it.
func (c *commandContext) withToolkit(cmd *cobra.Command, fn func(*app.Toolkit) error) error {
	tk, err := c.open(cmd.Context())
	if err != nil {
		return err
	}
	return fn(tk)
}

func (c *commandContext) close() {
	if c.toolkit != nil {
		c.toolkit.Close()
	}
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func requireFlag(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("--%s is required", name)
	}
	return nil
}
