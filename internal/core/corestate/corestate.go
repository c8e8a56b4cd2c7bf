package corestate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

type Stage string

const (
	StageNotReady Stage = "init"
	StagePreInit  Stage = "pre-init"
	StagePostInit Stage = "post-init"
	StageReady    Stage = "event"
)

const (
	StringsNone string = "none"
)

const nodeIDFile = "data"

const readme = ` - - - - ! STRICTLY FORBIDDEN TO MODIFY THIS DIRECTORY ! - - - -
This directory contains the unique node identifier stored in the file named data.
Clients see it in the initialize handshake. Changing it makes the node look like a new one.`

// NodeID returns the identifier stored under dir, creating one on first use.
func NodeID(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, nodeIDFile))
	if err == nil {
		id, perr := uuid.Parse(strings.TrimSpace(string(data)))
		if perr != nil {
			return "", fmt.Errorf("corrupt node id in %s: %w", dir, perr)
		}
		return id.String(), nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	return setNodeID(dir)
}

func setNodeID(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, nodeIDFile), []byte(id.String()), 0644); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, "README.txt"), []byte(readme), 0644); err != nil {
		return "", err
	}
	return id.String(), nil
}
