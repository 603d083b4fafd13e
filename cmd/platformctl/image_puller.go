// Copyright (C) 2026 Unstract
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"

	"github.com/unstract/platformctl/cmd/platformctl/internal/infra/process"
	"github.com/unstract/platformctl/pkg/logging"
	"github.com/unstract/platformctl/pkg/ux"
)

// ImagePuller pre-pulls the stack's third-party images.
//
// # Description
//
// Pulls run strictly sequentially, one docker process at a time, each
// wrapped in the retry decorator. On hosts that need emulation the
// pull is pinned to linux/amd64 to match the architecture override.
type ImagePuller struct {
	proc           process.Manager
	retrier        *Retrier
	needsEmulation bool
	logger         *logging.Logger
}

// NewImagePuller creates an ImagePuller for the fixed image list.
func NewImagePuller(proc process.Manager, retrier *Retrier, needsEmulation bool, logger *logging.Logger) *ImagePuller {
	return &ImagePuller{
		proc:           proc,
		retrier:        retrier,
		needsEmulation: needsEmulation,
		logger:         logger,
	}
}

// PullAll pulls every image in the fixed list. The first image whose
// retries are exhausted aborts the remainder.
func (p *ImagePuller) PullAll(ctx context.Context) error {
	for i, image := range infraImages {
		ux.Info(fmt.Sprintf("Pulling %s (%d/%d)", image, i+1, len(infraImages)))
		desc := "docker pull " + image
		err := p.retrier.Do(ctx, desc, func(ctx context.Context) error {
			return p.pullOne(ctx, image)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *ImagePuller) pullOne(ctx context.Context, image string) error {
	args := []string{"pull"}
	if p.needsEmulation {
		args = append(args, "--platform", overridePlatform)
	}
	args = append(args, image)

	_, stderr, exitCode, err := p.proc.RunInDir(ctx, "", nil, "docker", args...)
	if err != nil {
		return NewCommandError("docker pull "+image, exitCode, stderr, err)
	}
	if exitCode != 0 {
		return NewCommandError("docker pull "+image, exitCode, stderr, nil)
	}
	p.logger.Debug("image pulled", "image", image)
	return nil
}
