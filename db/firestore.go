package db

import (
	"context"
	"fmt"
	"time"

	"cityreport/models"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const (
	reportsCollection = "reports"
	eventsCollection  = "security_events"
)

// FirestoreDB mirrors reports and security events to Firestore.
// It is the alternative to the HTTP remote when REMOTE_MODE=firestore.
type FirestoreDB struct {
	client *firestore.Client
	log    logrus.FieldLogger
}

// NewFirestoreDB initializes a new Firestore client
func NewFirestoreDB(ctx context.Context, projectID, credentialsPath string, log logrus.FieldLogger) (*FirestoreDB, error) {
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}

	config := &firebase.Config{ProjectID: projectID}
	app, err := firebase.NewApp(ctx, config, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firestore client: %w", err)
	}

	log.WithField("project_id", projectID).Info("connected to Firestore")

	return &FirestoreDB{client: client, log: log}, nil
}

// NewFirestoreDBFromClient wraps an existing client (emulator tests).
func NewFirestoreDBFromClient(client *firestore.Client, log logrus.FieldLogger) *FirestoreDB {
	return &FirestoreDB{client: client, log: log}
}

// Close closes the Firestore client
func (db *FirestoreDB) Close() error {
	return db.client.Close()
}

// --- Report Operations ---

// PushReport upserts a report document keyed by its id.
func (db *FirestoreDB) PushReport(ctx context.Context, report models.Report) error {
	_, err := db.client.Collection(reportsCollection).Doc(report.ID).Set(ctx, report)
	if err != nil {
		return fmt.Errorf("failed to push report: %w", err)
	}
	return nil
}

// GetReport retrieves a mirrored report by ID
func (db *FirestoreDB) GetReport(ctx context.Context, id string) (*models.Report, error) {
	doc, err := db.client.Collection(reportsCollection).Doc(id).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	var report models.Report
	if err := doc.DataTo(&report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// GetReportsSince retrieves mirrored reports updated after a timestamp
func (db *FirestoreDB) GetReportsSince(ctx context.Context, since time.Time) ([]models.Report, error) {
	iter := db.client.Collection(reportsCollection).
		Where("updated_at", ">", since).
		Documents(ctx)
	defer iter.Stop()

	reports := []models.Report{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate reports: %w", err)
		}

		var report models.Report
		if err := doc.DataTo(&report); err != nil {
			db.log.WithError(err).WithField("doc_id", doc.Ref.ID).Warn("failed to parse report")
			continue
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// --- Security Event Operations ---

// Deliver stores a security event. It satisfies audit.Sink.
func (db *FirestoreDB) Deliver(ctx context.Context, event models.SecurityEvent) error {
	_, err := db.client.Collection(eventsCollection).Doc(event.ID).Set(ctx, event)
	if err != nil {
		return fmt.Errorf("failed to record security event: %w", err)
	}
	return nil
}

// Name identifies the sink in logs.
func (db *FirestoreDB) Name() string {
	return "firestore"
}
