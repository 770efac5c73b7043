package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/taxdesk/filing-client/internal/core/domain"
	"github.com/taxdesk/filing-client/internal/core/ports"
)

const collectionRequests = "filing_requests"

// RequestRepository implements ports.RequestRepository using MongoDB.
type RequestRepository struct {
	col *mongo.Collection
}

func NewRequestRepository(db *mongo.Database) *RequestRepository {
	return &RequestRepository{col: db.Collection(collectionRequests)}
}

// Create inserts a new filing request document.
func (r *RequestRepository) Create(ctx context.Context, req *domain.FilingRequest) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.col.InsertOne(ctx, req); err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

// FindByConfirmation retrieves a request by its confirmation number.
func (r *RequestRepository) FindByConfirmation(ctx context.Context, id string) (*domain.FilingRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var req domain.FilingRequest
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&req); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrRequestNotFound
		}
		return nil, err
	}
	return &req, nil
}

func listFilter(f ports.ListRequestsFilter) bson.M {
	filter := bson.M{}
	if f.OwnerUID != "" {
		filter["user_id"] = f.OwnerUID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Search != "" {
		rx := bson.M{"$regex": regexp.QuoteMeta(f.Search), "$options": "i"}
		filter["$or"] = bson.A{
			bson.M{"_id": rx},
			bson.M{"personal_info.full_name": rx},
			bson.M{"personal_info.email": rx},
		}
	}
	return filter
}

// List returns one page of requests, newest first, and the total matching count.
func (r *RequestRepository) List(ctx context.Context, f ports.ListRequestsFilter) ([]*domain.FilingRequest, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := listFilter(f)
	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count requests: %w", err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if f.Limit > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		opts.SetSkip(int64((page - 1) * f.Limit)).SetLimit(int64(f.Limit))
	}

	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find requests: %w", err)
	}
	out := []*domain.FilingRequest{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, fmt.Errorf("decode requests: %w", err)
	}
	return out, total, nil
}

// CountByStatus groups every request by its stored status.
func (r *RequestRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate status counts: %w", err)
	}
	var rows []struct {
		Status string `bson:"_id"`
		Count  int64  `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode status counts: %w", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// AppendStatus sets the status and pushes one history entry in a single update.
func (r *RequestRepository) AppendStatus(ctx context.Context, id, status string, paymentDate *time.Time, entry domain.StatusHistoryEntry) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	set := bson.M{"status": status, "updated_at": entry.Timestamp}
	if paymentDate != nil {
		set["payment_date"] = paymentDate.UTC()
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set":  set,
		"$push": bson.M{"status_history": entry},
	})
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrRequestNotFound
	}
	return nil
}

// AppendNote pushes an admin note.
func (r *RequestRepository) AppendNote(ctx context.Context, id string, note domain.AdminNote) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set":  bson.M{"updated_at": note.Timestamp},
		"$push": bson.M{"admin_notes": note},
	})
	if err != nil {
		return fmt.Errorf("append note: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrRequestNotFound
	}
	return nil
}

func (r *RequestRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrRequestNotFound
	}
	return nil
}

func (r *RequestRepository) All(ctx context.Context) ([]*domain.FilingRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("find requests: %w", err)
	}
	out := []*domain.FilingRequest{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode requests: %w", err)
	}
	return out, nil
}

// EnsureIndexes creates the indexes used by List.
func (r *RequestRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}
	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
