package repository

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

const (
	defaultVectorDimension = 768

	payloadSourceID = "source_id"
	payloadTitle    = "title"
	payloadLinkType = "link_type"
	payloadLink     = "link"
)

// QdrantConnectionConfig holds configuration for Qdrant connection
type QdrantConnectionConfig struct {
	Host            string
	Port            int
	Collection      string
	APIKey          string // Qdrant Cloud API Key (enables TLS automatically)
	UseTLS          bool   // Explicitly enable TLS without API Key
	VectorDimension int
	MinScore        float32 // results scoring below are dropped; 0 keeps all
}

// apiKeyInterceptor creates a unary interceptor that adds API key to metadata
func apiKeyInterceptor(apiKey string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", apiKey)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// QdrantRepository indexes completed sources for retrieval in chat
type QdrantRepository struct {
	conn            *grpc.ClientConn
	pointsClient    pb.PointsClient
	collectClient   pb.CollectionsClient
	collectionName  string
	vectorDimension int
	minScore        float32
}

// NewQdrantRepository creates a new QdrantRepository.
// Local Qdrant is reached without TLS; an API key (Qdrant Cloud) or UseTLS
// switches to TLS.
func NewQdrantRepository(cfg *QdrantConnectionConfig) (*QdrantRepository, error) {
	vectorDimension := cfg.VectorDimension
	if vectorDimension <= 0 {
		vectorDimension = defaultVectorDimension
	}

	conn, err := grpc.NewClient(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), dialOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	return &QdrantRepository{
		conn:            conn,
		pointsClient:    pb.NewPointsClient(conn),
		collectClient:   pb.NewCollectionsClient(conn),
		collectionName:  cfg.Collection,
		vectorDimension: vectorDimension,
		minScore:        cfg.MinScore,
	}, nil
}

func dialOptions(cfg *QdrantConnectionConfig) []grpc.DialOption {
	if !cfg.UseTLS && cfg.APIKey == "" {
		return []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}

	// Qdrant Cloud requires TLS 1.3
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS13})),
	}
	if cfg.APIKey != "" {
		opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
	}
	return opts
}

// Close closes the gRPC connection
func (r *QdrantRepository) Close() error {
	return r.conn.Close()
}

// EnsureCollection creates the collection and its link_type index if they
// don't exist. An existing collection with another vector size is an error.
func (r *QdrantRepository) EnsureCollection(ctx context.Context) error {
	info, err := r.collectClient.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collectionName,
	})
	if err == nil {
		if size, ok := collectionVectorSize(info.GetResult()); ok && size != uint64(r.vectorDimension) {
			return fmt.Errorf("collection %s has vector size %d, expected %d", r.collectionName, size, r.vectorDimension)
		}
		return nil
	}

	_, err = r.collectClient.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collectionName,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(r.vectorDimension),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	// Search filters on link_type
	_, err = r.pointsClient.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
		CollectionName: r.collectionName,
		FieldName:      payloadLinkType,
		FieldType:      pb.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("failed to index %s: %w", payloadLinkType, err)
	}

	return nil
}

func collectionVectorSize(info *pb.CollectionInfo) (uint64, bool) {
	vectors := info.GetConfig().GetParams().GetVectorsConfig()
	if size := vectors.GetParams().GetSize(); size > 0 {
		return size, true
	}
	for _, params := range vectors.GetParamsMap().GetMap() {
		if size := params.GetSize(); size > 0 {
			return size, true
		}
	}
	return 0, false
}

// SourcePayload is stored alongside each source vector
type SourcePayload struct {
	SourceID string `json:"source_id"`
	Title    string `json:"title"`
	LinkType string `json:"link_type"`
	Link     string `json:"link"`
}

// pointID converts a source id into a Qdrant UUID point id.
func pointID(id string) (*pb.PointId, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid point ID %q: %w", id, err)
	}
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: uid.String()}}, nil
}

// Upsert inserts or updates the vector of a source. id is the source ID.
func (r *QdrantRepository) Upsert(ctx context.Context, id string, vector []float32, payload *SourcePayload) error {
	pid, err := pointID(id)
	if err != nil {
		return err
	}
	if len(vector) != r.vectorDimension {
		return fmt.Errorf("vector has %d dimensions, collection expects %d", len(vector), r.vectorDimension)
	}

	wait := true
	_, err = r.pointsClient.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collectionName,
		Wait:           &wait,
		Points: []*pb.PointStruct{{
			Id: pid,
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vector}},
			},
			Payload: map[string]*pb.Value{
				payloadSourceID: stringValue(payload.SourceID),
				payloadTitle:    stringValue(payload.Title),
				payloadLinkType: stringValue(payload.LinkType),
				payloadLink:     stringValue(payload.Link),
			},
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert point: %w", err)
	}

	return nil
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

// SearchResult represents a search result from Qdrant
type SearchResult struct {
	ID      string
	Score   float32
	Payload *SourcePayload
}

// Search returns the topK sources closest to vector, optionally restricted to
// one link type.
func (r *QdrantRepository) Search(ctx context.Context, vector []float32, topK int, linkType string) ([]SearchResult, error) {
	req := &pb.SearchPoints{
		CollectionName: r.collectionName,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	}
	if r.minScore > 0 {
		req.ScoreThreshold = &r.minScore
	}
	if linkType != "" {
		req.Filter = &pb.Filter{
			Must: []*pb.Condition{keywordCondition(payloadLinkType, linkType)},
		}
	}

	resp, err := r.pointsClient.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]SearchResult, 0, len(resp.GetResult()))
	for _, scored := range resp.GetResult() {
		results = append(results, SearchResult{
			ID:      scored.GetId().GetUuid(),
			Score:   scored.GetScore(),
			Payload: parsePayload(scored.GetPayload()),
		})
	}

	return results, nil
}

func keywordCondition(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key:   key,
				Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: value}},
			},
		},
	}
}

func parsePayload(payload map[string]*pb.Value) *SourcePayload {
	if payload == nil {
		return nil
	}

	return &SourcePayload{
		SourceID: payload[payloadSourceID].GetStringValue(),
		Title:    payload[payloadTitle].GetStringValue(),
		LinkType: payload[payloadLinkType].GetStringValue(),
		Link:     payload[payloadLink].GetStringValue(),
	}
}

// Delete removes the vector of a source. Deleting a missing point is not an error.
func (r *QdrantRepository) Delete(ctx context.Context, id string) error {
	pid, err := pointID(id)
	if err != nil {
		return err
	}

	_, err = r.pointsClient.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collectionName,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: []*pb.PointId{pid}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete point: %w", err)
	}

	return nil
}
