// Package firestore implements the repository interfaces on Cloud Firestore.
//
// COLLECTIONS:
//   - users/{id}          one document per registrant
//   - stamps/{id}         the registrant's stamp card, same key
//   - nicknames/{key}     claim document that makes nicknames unique
//   - submissions/{id}    submission ids relayed by the middleman service
//   - test/{probe}        disposable documents written by CheckStore
//
// Registration and booth marking run inside transactions. Firestore
// transactions are optimistic: if another request writes a document this
// transaction read, the commit fails and the client library retries the
// function, so two booth scans for the same card cannot lose each other.
package firestore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/firestore"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sakif/stampcard/internal/apperror"
)

const (
	usersCollection       = "users"
	stampsCollection      = "stamps"
	nicknamesCollection   = "nicknames"
	submissionsCollection = "submissions"
	probeCollection       = "test"

	datastoreScope = "https://www.googleapis.com/auth/datastore"
)

// Options configures the client. ServiceAccountJSON may be empty only when
// FIRESTORE_EMULATOR_HOST is set.
type Options struct {
	ProjectID          string
	ServiceAccountJSON string
}

// Store is a repository.Store backed by Firestore.
type Store struct {
	client    *firestore.Client
	projectID string
}

// New builds the client once at startup. Credential problems come back as
// apperror.ErrConfiguration so the caller can keep serving with a store that
// reports the misconfiguration on every request.
func New(ctx context.Context, opts Options) (*Store, error) {
	projectID := opts.ProjectID
	var clientOpts []option.ClientOption

	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		raw := strings.TrimSpace(opts.ServiceAccountJSON)
		if raw == "" {
			return nil, apperror.Misconfigured(errors.New("firestore: FIREBASE_SERVICE_ACCOUNT is empty"))
		}
		creds, err := google.CredentialsFromJSON(ctx, []byte(raw), datastoreScope)
		if err != nil {
			return nil, apperror.Misconfigured(fmt.Errorf("firestore: parsing service account: %w", err))
		}
		if projectID == "" {
			projectID = creds.ProjectID
		}
		clientOpts = append(clientOpts, option.WithCredentials(creds))
	}

	if projectID == "" {
		return nil, apperror.Misconfigured(errors.New("firestore: no project id in config or service account"))
	}

	client, err := firestore.NewClient(ctx, projectID, clientOpts...)
	if err != nil {
		return nil, apperror.Misconfigured(fmt.Errorf("firestore: creating client: %w", err))
	}

	return &Store{client: client, projectID: projectID}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) users() *firestore.CollectionRef  { return s.client.Collection(usersCollection) }
func (s *Store) stamps() *firestore.CollectionRef { return s.client.Collection(stampsCollection) }

// nicknameKey maps a nickname to a legal document id. Base64url keeps it
// exact and case-sensitive; the prefix keeps it clear of the reserved
// __name__ pattern.
func nicknameKey(nickname string) string {
	return "n-" + base64.RawURLEncoding.EncodeToString([]byte(nickname))
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func isAlreadyExists(err error) bool {
	return status.Code(err) == codes.AlreadyExists
}
