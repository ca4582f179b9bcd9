package preflight

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/G-Research/forge/internal/capabilities"
	"github.com/G-Research/forge/internal/common/forgeerrors"
)

const (
	validatorRepository = "aptos/validator"
	// DefaultCommitThreshold is how many commits back FindRecentImage looks for a built image.
	DefaultCommitThreshold = 100
)

// Git runs git commands in the current directory.
type Git struct {
	Shell capabilities.Shell
}

// Revision returns the commit hash of HEAD~i.
func (g Git) Revision(ctx context.Context, i int) (string, error) {
	out, err := g.Shell.Run(ctx, []string{"git", "rev-parse", fmt.Sprintf("HEAD~%d", i)}, false).Unwrap()
	if err != nil {
		return "", errors.WithMessagef(err, "error resolving HEAD~%d", i)
	}
	return strings.TrimSpace(string(out)), nil
}

// ImageExists returns true if the validator repository has an image tagged imageTag.
func ImageExists(ctx context.Context, shell capabilities.Shell, imageTag string) bool {
	result := shell.Run(ctx, []string{
		"aws", "ecr", "describe-images",
		"--repository-name", validatorRepository,
		"--image-ids", "imageTag=" + imageTag,
	}, false)
	return result.ExitCode == 0
}

// FindRecentImage returns the most recent of the last commitThreshold commits that has a built
// image. Commits are checked newest first, one at a time.
func FindRecentImage(ctx context.Context, shell capabilities.Shell, git Git, commitThreshold int) (string, error) {
	for i := 0; i < commitThreshold; i++ {
		revision, err := git.Revision(ctx, i)
		if err != nil {
			return "", err
		}
		if ImageExists(ctx, shell, revision) {
			return revision, nil
		}
		log.Debugf("no image built for %s", revision)
	}
	return "", errors.WithStack(&forgeerrors.ErrNotFound{
		Type:    "image",
		Value:   fmt.Sprintf("HEAD~0..HEAD~%d", commitThreshold-1),
		Message: "couldn't find a recent built image",
	})
}

// VerifyImages checks that every image in images exists, querying the registry for all of them
// at once. images maps the role of an image, e.g. "upgrade image", to its tag.
func VerifyImages(ctx context.Context, shell capabilities.Shell, images map[string]string) error {
	g, ctx := errgroup.WithContext(ctx)
	for role, tag := range images {
		role, tag := role, tag
		g.Go(func() error {
			if !ImageExists(ctx, shell, tag) {
				return errors.WithStack(&forgeerrors.ErrNotFound{Type: role, Value: tag})
			}
			return nil
		})
	}
	return g.Wait()
}
