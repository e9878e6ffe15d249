// internal/infra/firestore/client.go
package firestoreinfra

import (
	"context"
	"fmt"
	"log"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
)

// ClientWrapper は Firestore クライアントと接続先プロジェクトを束ねる。
// キャンペーン／allow-list ドキュメントのリポジトリはこれを共有する。
type ClientWrapper struct {
	Client    *firestore.Client
	ProjectID string
}

// NewClient opens the Firestore connection for the configured project.
// credentialsFile が空の場合は ADC (Application Default Credentials)。
func NewClient(ctx context.Context, projectID string, credentialsFile string) (*ClientWrapper, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: new client: %w", err)
	}

	log.Printf("[mintgate-firestore] connected project=%s", projectID)
	return &ClientWrapper{Client: client, ProjectID: projectID}, nil
}

// Ping verifies the connection is usable. Firestore has no ping API,
// so a cheap collection listing stands in.
func (cw *ClientWrapper) Ping(ctx context.Context) error {
	if cw == nil || cw.Client == nil {
		return fmt.Errorf("firestore: client is nil")
	}
	if _, err := cw.Client.Collections(ctx).GetAll(); err != nil {
		return fmt.Errorf("firestore: ping: %w", err)
	}
	return nil
}

// Close releases the underlying gRPC connection.
func (cw *ClientWrapper) Close() error {
	if cw == nil || cw.Client == nil {
		return nil
	}
	return cw.Client.Close()
}
