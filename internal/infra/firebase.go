// README: Firebase Admin SDK initialisation: token verifier, RTDB and messaging clients.
package infra

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/db"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FirebaseToken holds the verified token data used by downstream middleware.
type FirebaseToken struct {
	UID    string
	Claims map[string]interface{}
}

// TokenVerifier verifies a raw Firebase ID token string and returns token data.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*FirebaseToken, error)
}

// Firebase bundles the Admin SDK clients the service depends on. RTDB mirrors
// the live-location channel, messaging delivers dispatch notifications, and
// auth backs the role middleware.
type Firebase struct {
	app    *firebase.App
	authCl *auth.Client
	dbCl   *db.Client
	msgCl  *messaging.Client
}

// NewFirebase initialises the Admin SDK. If credentialsFile is non-empty it is
// used as the service-account JSON path; otherwise application-default
// credentials / GOOGLE_APPLICATION_CREDENTIALS are used. databaseURL may be
// empty when the RTDB mirror is not configured.
func NewFirebase(ctx context.Context, projectID, credentialsFile, databaseURL string) (*Firebase, error) {
	opts := []option.ClientOption{}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID, DatabaseURL: databaseURL}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase.NewApp: %w", err)
	}

	authCl, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase app.Auth: %w", err)
	}

	f := &Firebase{app: app, authCl: authCl}

	if databaseURL != "" {
		dbCl, err := app.Database(ctx)
		if err != nil {
			return nil, fmt.Errorf("firebase app.Database: %w", err)
		}
		f.dbCl = dbCl
	}

	msgCl, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase app.Messaging: %w", err)
	}
	f.msgCl = msgCl

	return f, nil
}

func (f *Firebase) VerifyIDToken(ctx context.Context, idToken string) (*FirebaseToken, error) {
	token, err := f.authCl.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}
	return &FirebaseToken{UID: token.UID, Claims: token.Claims}, nil
}

// Database returns the RTDB client, or nil when no database URL was configured.
func (f *Firebase) Database() *db.Client { return f.dbCl }

// Messaging returns the FCM client.
func (f *Firebase) Messaging() *messaging.Client { return f.msgCl }
