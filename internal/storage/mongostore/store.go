package mongostore

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/DinoTechnologyCenter-DTC/HASET-Backend/internal/models"
	"github.com/DinoTechnologyCenter-DTC/HASET-Backend/internal/storage"
)

// Store is a MongoDB-backed TransactionStore. Conditional updates lean on
// Mongo's filtered UpdateOne so a concurrent callback and poll cannot both
// rewrite a record that already reads success.
type Store struct {
	collection *mongo.Collection
}

// Connect dials MongoDB and verifies the connection with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, err
	}

	log.Println("Connected to MongoDB!")
	return client, nil
}

func NewStore(db *mongo.Database) *Store {
	return &Store{collection: db.Collection("transactions")}
}

// EnsureIndexes creates the lookup indexes the payment flows depend on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{Keys: bson.M{"external_reference": 1}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "doctor_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
	}
	if _, err := s.collection.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create indexes: %v", err)
	}
	return nil
}

// transactionDoc is the BSON shape of a transaction. Amount is stored as a
// string so decimal values survive the round trip exactly.
type transactionDoc struct {
	ID                string    `bson:"_id"`
	UserID            string    `bson:"user_id,omitempty"`
	DoctorID          string    `bson:"doctor_id"`
	Amount            string    `bson:"amount"`
	Currency          string    `bson:"currency"`
	Provider          string    `bson:"provider"`
	PaymentAccount    string    `bson:"payment_account"`
	Status            string    `bson:"status"`
	ExternalReference string    `bson:"external_reference,omitempty"`
	Description       string    `bson:"description,omitempty"`
	FailureReason     string    `bson:"failure_reason,omitempty"`
	CreatedAt         time.Time `bson:"created_at"`
	UpdatedAt         time.Time `bson:"updated_at"`
}

func toDoc(tx *models.Transaction) transactionDoc {
	return transactionDoc{
		ID:                tx.ID,
		UserID:            tx.UserID,
		DoctorID:          tx.DoctorID,
		Amount:            tx.Amount.String(),
		Currency:          tx.Currency,
		Provider:          tx.Provider,
		PaymentAccount:    tx.PaymentAccount,
		Status:            string(tx.Status),
		ExternalReference: tx.ExternalReference,
		Description:       tx.Description,
		FailureReason:     tx.FailureReason,
		CreatedAt:         tx.CreatedAt,
		UpdatedAt:         tx.UpdatedAt,
	}
}

func fromDoc(doc transactionDoc) (*models.Transaction, error) {
	amount, err := decimal.NewFromString(doc.Amount)
	if err != nil {
		return nil, fmt.Errorf("failed to decode amount %q: %v", doc.Amount, err)
	}
	return &models.Transaction{
		ID:                doc.ID,
		UserID:            doc.UserID,
		DoctorID:          doc.DoctorID,
		Amount:            amount,
		Currency:          doc.Currency,
		Provider:          doc.Provider,
		PaymentAccount:    doc.PaymentAccount,
		Status:            models.TransactionStatus(doc.Status),
		ExternalReference: doc.ExternalReference,
		Description:       doc.Description,
		FailureReason:     doc.FailureReason,
		CreatedAt:         doc.CreatedAt,
		UpdatedAt:         doc.UpdatedAt,
	}, nil
}

func (s *Store) Create(ctx context.Context, tx *models.Transaction) error {
	now := time.Now()
	tx.ID = uuid.New().String()
	tx.CreatedAt = now
	tx.UpdatedAt = now

	if _, err := s.collection.InsertOne(ctx, toDoc(tx)); err != nil {
		return fmt.Errorf("failed to save transaction: %v", err)
	}
	return nil
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (*models.Transaction, error) {
	var doc transactionDoc
	if err := s.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch transaction: %v", err)
	}
	return fromDoc(doc)
}

func (s *Store) FindByID(ctx context.Context, id string) (*models.Transaction, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *Store) FindByExternalReference(ctx context.Context, ref string) (*models.Transaction, error) {
	return s.findOne(ctx, bson.M{"external_reference": ref})
}

func (s *Store) FindActive(ctx context.Context, userID, doctorID string, since time.Time) (*models.Transaction, error) {
	return s.findOne(ctx, bson.M{
		"user_id":    userID,
		"doctor_id":  doctorID,
		"status":     bson.M{"$in": []string{string(models.StatusPending), string(models.StatusProcessing)}},
		"created_at": bson.M{"$gte": since},
	})
}

func (s *Store) List(ctx context.Context, status models.TransactionStatus) ([]models.Transaction, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = string(status)
	}

	cur, err := s.collection.Find(ctx, filter, options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transactions: %v", err)
	}
	defer cur.Close(ctx)

	var out []models.Transaction
	for cur.Next(ctx) {
		var doc transactionDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode transaction: %v", err)
		}
		tx, err := fromDoc(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *tx)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("failed to decode transactions: %v", err)
	}
	return out, nil
}

func (s *Store) SetExternalReference(ctx context.Context, id, ref string) error {
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": id, "external_reference": bson.M{"$in": []any{nil, ""}}},
		bson.M{"$set": bson.M{"external_reference": ref, "updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to set external reference: %v", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("external reference already set or transaction missing")
	}
	return nil
}

func (s *Store) UpdateStatus(ctx context.Context, id string, status models.TransactionStatus, reason string) (bool, error) {
	set := bson.M{"status": string(status), "updated_at": time.Now()}
	if reason != "" {
		set["failure_reason"] = reason
	}

	// Filtering on status != success makes the success guard and the
	// write a single atomic operation.
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$ne": string(models.StatusSuccess)}},
		bson.M{"$set": set},
	)
	if err != nil {
		return false, fmt.Errorf("failed to update transaction status: %v", err)
	}
	if res.MatchedCount > 0 {
		return true, nil
	}

	// No match: either the transaction is missing or it already succeeded.
	if _, err := s.FindByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Store) UpdateDescription(ctx context.Context, id, description string) error {
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"description": description, "updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to update description: %v", err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

var _ storage.TransactionStore = (*Store)(nil)
