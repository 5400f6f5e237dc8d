package repository

import (
	"context"
	"crypto/tls"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/miso-46/AI-minutes/internal/domain"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

const defaultVectorDimension = 1536

// chunkPointNamespace scopes the deterministic point IDs of transcript chunks.
var chunkPointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("ai-minutes/transcript-chunk"))

// QdrantConnectionConfig holds configuration for Qdrant connection
type QdrantConnectionConfig struct {
	Host            string
	Port            int
	Collection      string
	APIKey          string // Qdrant Cloud API key, enables TLS
	UseTLS          bool
	VectorDimension int
}

func apiKeyInterceptor(apiKey string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", apiKey)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// QdrantRepository mirrors chunk embeddings into a Qdrant collection so
// candidate chunks can be pre-selected by approximate search.
type QdrantRepository struct {
	conn            *grpc.ClientConn
	pointsClient    pb.PointsClient
	collectClient   pb.CollectionsClient
	collectionName  string
	vectorDimension int
}

// NewQdrantRepository connects to local Qdrant (insecure) or Qdrant Cloud
// (TLS + API key).
func NewQdrantRepository(cfg *QdrantConnectionConfig) (*QdrantRepository, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	dim := cfg.VectorDimension
	if dim <= 0 {
		dim = defaultVectorDimension
	}

	var opts []grpc.DialOption
	if cfg.UseTLS || cfg.APIKey != "" {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{
			MinVersion: tls.VersionTLS13,
		})))
		if cfg.APIKey != "" {
			opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
		}
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	return &QdrantRepository{
		conn:            conn,
		pointsClient:    pb.NewPointsClient(conn),
		collectClient:   pb.NewCollectionsClient(conn),
		collectionName:  cfg.Collection,
		vectorDimension: dim,
	}, nil
}

// Close closes the gRPC connection
func (r *QdrantRepository) Close() error {
	return r.conn.Close()
}

// EnsureCollection creates the collection if it doesn't exist and checks the
// vector size of an existing one.
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

	// Searches always filter by transcript.
	_, err = r.pointsClient.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
		CollectionName: r.collectionName,
		FieldName:      "transcript_id",
		FieldType:      pb.FieldType_FieldTypeInteger.Enum(),
	})
	if err != nil {
		return fmt.Errorf("failed to create transcript_id index: %w", err)
	}
	return nil
}

func collectionVectorSize(info *pb.CollectionInfo) (uint64, bool) {
	vectors := info.GetConfig().GetParams().GetVectorsConfig()
	if vectors == nil {
		return 0, false
	}
	if single := vectors.GetParams(); single != nil && single.GetSize() > 0 {
		return single.GetSize(), true
	}
	for _, p := range vectors.GetParamsMap().GetMap() {
		if p.GetSize() > 0 {
			return p.GetSize(), true
		}
	}
	return 0, false
}

// ChunkPointID derives the Qdrant point ID of a chunk. The same chunk always
// maps to the same point, so re-indexing overwrites instead of duplicating.
func ChunkPointID(chunkID uint) string {
	return uuid.NewSHA1(chunkPointNamespace, []byte(strconv.FormatUint(uint64(chunkID), 10))).String()
}

// UpsertChunk indexes the vector of a chunk.
func (r *QdrantRepository) UpsertChunk(ctx context.Context, chunk *domain.TranscriptChunk, vector []float32) error {
	wait := true
	_, err := r.pointsClient.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collectionName,
		Wait:           &wait,
		Points: []*pb.PointStruct{
			{
				Id: &pb.PointId{
					PointIdOptions: &pb.PointId_Uuid{Uuid: ChunkPointID(chunk.ID)},
				},
				Vectors: &pb.Vectors{
					VectorsOptions: &pb.Vectors_Vector{
						Vector: &pb.Vector{Data: vector},
					},
				},
				Payload: map[string]*pb.Value{
					"chunk_id":      {Kind: &pb.Value_IntegerValue{IntegerValue: int64(chunk.ID)}},
					"transcript_id": {Kind: &pb.Value_IntegerValue{IntegerValue: int64(chunk.TranscriptID)}},
					"chunk_index":   {Kind: &pb.Value_IntegerValue{IntegerValue: int64(chunk.ChunkIndex)}},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert chunk point: %w", err)
	}
	return nil
}

// SearchChunks returns the IDs of the chunks of a transcript nearest to
// vector, best first.
func (r *QdrantRepository) SearchChunks(ctx context.Context, transcriptID uint, vector []float32, limit int) ([]uint, error) {
	resp, err := r.pointsClient.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collectionName,
		Vector:         vector,
		Limit:          uint64(limit),
		Filter: &pb.Filter{
			Must: []*pb.Condition{
				{
					ConditionOneOf: &pb.Condition_Field{
						Field: &pb.FieldCondition{
							Key: "transcript_id",
							Match: &pb.Match{
								MatchValue: &pb.Match_Integer{Integer: int64(transcriptID)},
							},
						},
					},
				},
			},
		},
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Include{
				Include: &pb.PayloadIncludeSelector{Fields: []string{"chunk_id"}},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	ids := make([]uint, 0, len(resp.GetResult()))
	for _, scored := range resp.GetResult() {
		if v, ok := scored.GetPayload()["chunk_id"]; ok {
			ids = append(ids, uint(v.GetIntegerValue()))
		}
	}
	return ids, nil
}
