// Package backend constructs the remote client for an account.
package backend

import (
	"github.com/spf13/afero"

	"github.com/sidkik/remote-mirror/pkg/config"
	"github.com/sidkik/remote-mirror/pkg/errors"
	"github.com/sidkik/remote-mirror/pkg/remote"
	"github.com/sidkik/remote-mirror/pkg/remote/dir"
	"github.com/sidkik/remote-mirror/pkg/remote/s3"
)

// Mocked out for unit testing.
var fs = afero.NewOsFs()

// New returns an unauthenticated client for the account's remote, and the
// credentials to log in with.
func New(cfg config.Remote) (remote.Client, remote.Credentials, error) {
	switch cfg.Backend {
	case config.BackendS3:
		client := s3.New(s3.Config{
			Bucket:   cfg.Bucket,
			Prefix:   cfg.Prefix,
			Region:   cfg.Region,
			Endpoint: cfg.Endpoint,
		})
		creds := remote.Credentials{Username: cfg.AccessKey, Password: cfg.SecretKey}
		return client, creds, nil
	case config.BackendDir:
		return dir.New(fs, cfg.Path), remote.Credentials{}, nil
	default:
		return nil, remote.Credentials{}, errors.NewFriendlyError(
			"Unsupported remote backend %q", cfg.Backend)
	}
}
