// Package preflight checks credentials, cluster and image availability before a Forge run starts.
package preflight

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/G-Research/forge/internal/capabilities"
	"github.com/G-Research/forge/internal/common/forgeerrors"
)

const (
	awsEnvPrefix = "AWS_"
	// Exported by the auth script alongside the session credentials.
	awsTokenExpirationEnv = "AWS_TOKEN_EXPIRATION"
	// Sources the script given as the first positional argument and prints the AWS_ variables it set.
	sourceAuthScript = `source "$1" && env | grep ` + awsEnvPrefix
)

// Accepted formats of AWS_TOKEN_EXPIRATION.
var awsTokenExpirationLayouts = []string{
	"2006-01-02T15:04:05Z0700",
	time.RFC3339,
}

var (
	defaultSetenv = os.Setenv
	// Replaceable in tests.
	setenv = defaultSetenv
)

// AssertAWSTokenExpiration checks that the AWS session token expiring at expiration is still valid.
func AssertAWSTokenExpiration(expiration string, clock capabilities.Time) error {
	if expiration == "" {
		return errors.WithStack(&forgeerrors.ErrCredentials{Message: "AWS token is required"})
	}
	expiresAt, ok := parseTokenExpiration(expiration)
	if !ok {
		return errors.WithStack(&forgeerrors.ErrCredentials{Message: "Invalid date format: " + expiration})
	}
	if clock.Now().After(expiresAt) {
		return errors.WithStack(&forgeerrors.ErrCredentials{Message: "AWS token has expired"})
	}
	return nil
}

// AWSTokenExpiration returns the expiry of the current session token: AWS_TOKEN_EXPIRATION as it is
// now, including anything UpdateAWSAuth exported, or configured if unset.
func AWSTokenExpiration(configured string) string {
	if expiration := os.Getenv(awsTokenExpirationEnv); expiration != "" {
		return expiration
	}
	return configured
}

func parseTokenExpiration(expiration string) (time.Time, bool) {
	for _, layout := range awsTokenExpirationLayouts {
		if t, err := time.Parse(layout, expiration); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

type callerIdentity struct {
	Account string `json:"Account"`
}

// AWSAccountNum returns the account of the current AWS credentials.
func AWSAccountNum(ctx context.Context, shell capabilities.Shell) (string, error) {
	out, err := shell.Run(ctx, []string{"aws", "sts", "get-caller-identity"}, false).Unwrap()
	if err != nil {
		return "", errors.WithMessage(err, "error getting AWS caller identity")
	}
	var identity callerIdentity
	if err := json.Unmarshal(out, &identity); err != nil {
		return "", errors.Wrap(err, "error decoding AWS caller identity")
	}
	if identity.Account == "" {
		return "", errors.WithStack(&forgeerrors.ErrCredentials{Message: "AWS account number is required"})
	}
	return identity.Account, nil
}

// UpdateAWSAuth sources authScript, exports the AWS_ variables it sets into the environment of
// this process and returns the account of the new credentials.
func UpdateAWSAuth(ctx context.Context, shell capabilities.Shell, authScript string) (string, error) {
	if authScript == "" {
		return "", errors.WithStack(&forgeerrors.ErrCredentials{Message: "Please authenticate with AWS and rerun"})
	}
	out, err := shell.Run(ctx, []string{"bash", "-c", sourceAuthScript, "_", authScript}, false).Unwrap()
	if err != nil {
		return "", errors.WithMessagef(err, "error sourcing %s", authScript)
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, awsEnvPrefix) {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		log.Debugf("exporting %s", key)
		if err := setenv(key, value); err != nil {
			return "", errors.WithStack(err)
		}
	}
	return AWSAccountNum(ctx, shell)
}
