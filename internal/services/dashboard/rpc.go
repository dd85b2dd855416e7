package dashboard

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/LeonardoBeccarini/fertilizer_advisor/internal/services/advisor"
)

const (
	RecommenderService = "fertilizer.v1.Recommender"
	RecommendMethod    = "/" + RecommenderService + "/Recommend"
)

// RecommenderServer takes and returns google.protobuf.Struct so that no generated
// code is needed:
//
//	request:  {moisture, temperature, ec, ph, n, p, k (string|number), field_id?}
//	response: {fertilizer, description, color, rate_kg_ha, rate_text, importances[], summary[]}
type RecommenderServer interface {
	Recommend(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

func recommendHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RecommenderServer).Recommend(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RecommendMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RecommenderServer).Recommend(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var RecommenderServiceDesc = grpc.ServiceDesc{
	ServiceName: RecommenderService,
	HandlerType: (*RecommenderServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Recommend", Handler: recommendHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "fertilizer/v1/recommender.proto",
}

// ---------- server ----------

type rpcServer struct{ d *Dashboard }

// NewGRPCServer registers the recommender and the standard health service.
func (d *Dashboard) NewGRPCServer(opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	s := grpc.NewServer(opts...)
	s.RegisterService(&RecommenderServiceDesc, &rpcServer{d: d})

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(RecommenderService, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return s, hs
}

func (s *rpcServer) Recommend(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	lookup := func(k string) (string, bool) {
		v, ok := fields[k]
		if !ok {
			return "", false
		}
		return rawValue(v.AsInterface())
	}
	raw := advisor.CollectRawSample(lookup)
	fieldID, _ := lookup("field_id")

	rec, _, err := s.d.recommend(ctx, raw, strings.TrimSpace(fieldID))
	if err != nil {
		var ve *advisor.ValidationError
		if errors.As(err, &ve) {
			return nil, status.Error(codes.InvalidArgument, advisor.UserMessage(err))
		}
		return nil, status.Error(codes.Internal, advisor.UserMessage(err))
	}
	out, err := recommendationStruct(rec)
	if err != nil {
		s.d.log.Error("encode grpc response", zap.Error(err))
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}

func recommendationStruct(rec *advisor.Recommendation) (*structpb.Struct, error) {
	imp := make([]any, 0, len(rec.Importances))
	for _, fw := range rec.Importances {
		imp = append(imp, map[string]any{"feature": fw.Feature, "weight": fw.Weight})
	}
	summary := make([]any, 0, len(rec.Summary))
	for _, r := range rec.Summary {
		summary = append(summary, map[string]any{"parameter": r.Parameter, "value": r.Value, "unit": r.Unit})
	}
	return structpb.NewStruct(map[string]any{
		"fertilizer":  rec.Fertilizer,
		"description": rec.Description,
		"color":       rec.Color,
		"rate_kg_ha":  rec.RateKgHa,
		"rate_text":   rec.RateText,
		"importances": imp,
		"summary":     summary,
	})
}
