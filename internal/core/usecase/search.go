package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
	"github.com/kirillkom/evidence-retrieval/internal/core/lexical"
	"github.com/kirillkom/evidence-retrieval/internal/core/ports"
)

const (
	outcomeOK       = "ok"
	outcomeDegraded = "degraded"
	outcomeInvalid  = "invalid"
	outcomeFailed   = "failed"
	outcomeCanceled = "canceled"
)

type SearchOptions struct {
	ChannelTimeout       time.Duration
	CandidatesPerChannel int
	Shaping              ScoreShaping
}

func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		ChannelTimeout:       3 * time.Second,
		CandidatesPerChannel: 50,
		Shaping:              DefaultScoreShaping(),
	}
}

type SearchUseCase struct {
	model        *lexical.Model
	lexicalIndex ports.LexicalIndex
	embedder     ports.Embedder
	denseIndex   ports.DenseIndex
	payloads     ports.PayloadStore
	observer     ports.SearchObserver
	opts         SearchOptions
	now          func() time.Time
}

// NewSearchUseCase wires the two retrieval channels. The lexical channel is enabled when
// lexicalIndex is set, the semantic channel when both embedder and denseIndex are set.
// payloads and observer are optional. Auditing wraps the searcher, see NewAuditedSearcher.
func NewSearchUseCase(
	model *lexical.Model,
	lexicalIndex ports.LexicalIndex,
	embedder ports.Embedder,
	denseIndex ports.DenseIndex,
	payloads ports.PayloadStore,
	observer ports.SearchObserver,
	opts SearchOptions,
) (*SearchUseCase, error) {
	def := DefaultSearchOptions()
	if opts.ChannelTimeout <= 0 {
		opts.ChannelTimeout = def.ChannelTimeout
	}
	if opts.CandidatesPerChannel <= 0 {
		opts.CandidatesPerChannel = def.CandidatesPerChannel
	}
	if opts.Shaping == (ScoreShaping{}) {
		opts.Shaping = def.Shaping
	}
	if err := opts.Shaping.Validate(); err != nil {
		return nil, err
	}
	if model == nil {
		return nil, domain.WrapError(domain.ErrInvalidConfiguration, "new search usecase", errors.New("lexical model is required"))
	}
	if lexicalIndex == nil && (embedder == nil || denseIndex == nil) {
		return nil, domain.WrapError(domain.ErrInvalidConfiguration, "new search usecase", errors.New("no retrieval channel configured"))
	}
	return &SearchUseCase{
		model:        model,
		lexicalIndex: lexicalIndex,
		embedder:     embedder,
		denseIndex:   denseIndex,
		payloads:     payloads,
		observer:     observer,
		opts:         opts,
		now:          time.Now,
	}, nil
}

type channelOutcome struct {
	results []domain.ChannelResult
	err     error
	state   domain.ChannelState
	elapsed time.Duration
}

func (uc *SearchUseCase) Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResponse, error) {
	start := uc.now()
	if err := req.Validate(); err != nil {
		uc.observeSearch(outcomeInvalid, start, 0)
		return nil, err
	}
	channels, err := uc.enabledChannels(req.Channels)
	if err != nil {
		uc.observeSearch(outcomeInvalid, start, 0)
		return nil, err
	}

	params := uc.model.Params()
	if req.BM25 != nil {
		params = *req.BM25
	}
	perChannel := max(uc.opts.CandidatesPerChannel, req.TopK)

	outcomes := make(map[domain.Channel]*channelOutcome, len(channels))
	for _, ch := range channels {
		outcomes[ch] = &channelOutcome{}
	}

	// Channel failures degrade the response and stay in outcomes; only parent cancellation
	// comes back through the group.
	snapshotVersion := uc.model.Snapshots().Version()
	var g errgroup.Group
	if out, ok := outcomes[domain.ChannelLexical]; ok {
		g.Go(func() error {
			weights, version := uc.model.EncodeWith(req.Query, params)
			snapshotVersion = version
			sparse := lexical.ToSparse(weights, lexical.NewTokenIndexCache())
			uc.runChannel(ctx, out, func(chCtx context.Context) ([]domain.ChannelResult, error) {
				if sparse.Empty() {
					return nil, nil
				}
				return uc.lexicalIndex.SearchSparse(chCtx, sparse, req.Filter, perChannel)
			})
			return ctx.Err()
		})
	}
	if out, ok := outcomes[domain.ChannelSemantic]; ok {
		g.Go(func() error {
			uc.runChannel(ctx, out, func(chCtx context.Context) ([]domain.ChannelResult, error) {
				vector, err := uc.embedder.EmbedQuery(chCtx, req.Query)
				if err != nil {
					return nil, fmt.Errorf("embed query: %w", err)
				}
				return uc.denseIndex.SearchDense(chCtx, vector, req.Filter, perChannel)
			})
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		uc.observeSearch(outcomeCanceled, start, 0)
		return nil, err
	}

	diagnostics := domain.Diagnostics{
		Channels:        make(map[domain.Channel]domain.ChannelReport, len(domain.AllChannels)),
		SnapshotVersion: snapshotVersion,
	}
	lists := make([][]domain.ChannelResult, 0, len(channels))
	var failures []error
	for _, ch := range domain.AllChannels {
		out, ok := outcomes[ch]
		if !ok {
			diagnostics.Channels[ch] = domain.ChannelReport{State: domain.ChannelDisabled}
			continue
		}
		report := domain.ChannelReport{
			State:      out.state,
			Results:    len(out.results),
			DurationMS: float64(out.elapsed.Microseconds()) / 1000.0,
		}
		if out.err != nil {
			report.Error = out.err.Error()
			diagnostics.Degraded = true
			failures = append(failures, fmt.Errorf("%s channel: %w", ch, out.err))
			slog.Warn("channel_failed",
				"request_id", req.RequestID,
				"channel", string(ch),
				"state", string(out.state),
				"duration_ms", report.DurationMS,
				"error", out.err,
			)
		}
		diagnostics.Channels[ch] = report
		for i := range out.results {
			out.results[i].Channel = ch
		}
		if uc.observer != nil {
			uc.observer.ObserveChannel(ch, out.state, out.elapsed, len(out.results))
		}
		lists = append(lists, out.results)
	}
	if len(failures) == len(channels) {
		uc.observeSearch(outcomeFailed, start, 0)
		return nil, domain.WrapError(domain.ErrAllChannelsFailed, "search evidence", errors.Join(failures...))
	}

	fused := Fuse(lists, req.Fusion.K, req.Fusion.MatchLabel)
	ApplyScoring(fused, req.Fusion, uc.opts.Shaping)
	resp := Assemble(len(fused), FilterByThreshold(fused, req.ScoreThreshold), req.TopK)
	uc.fillPayloads(ctx, req.RequestID, resp.Results)

	diagnostics.Elapsed = uc.now().Sub(start)
	resp.Diagnostics = diagnostics

	outcome := outcomeOK
	if diagnostics.Degraded {
		outcome = outcomeDegraded
	}
	uc.observeSearch(outcome, start, len(resp.Results))
	return resp, nil
}

func (uc *SearchUseCase) runChannel(
	ctx context.Context,
	out *channelOutcome,
	call func(context.Context) ([]domain.ChannelResult, error),
) {
	chCtx, cancel := context.WithTimeout(ctx, uc.opts.ChannelTimeout)
	defer cancel()

	start := uc.now()
	results, err := call(chCtx)
	out.elapsed = uc.now().Sub(start)
	switch {
	case err == nil:
		out.state = domain.ChannelOK
		out.results = results
	case errors.Is(err, context.DeadlineExceeded) || (chCtx.Err() != nil && ctx.Err() == nil):
		out.state = domain.ChannelTimeout
		out.err = err
	default:
		out.state = domain.ChannelFailed
		out.err = err
	}
}

func (uc *SearchUseCase) enabledChannels(requested []domain.Channel) ([]domain.Channel, error) {
	configured := make([]domain.Channel, 0, len(domain.AllChannels))
	if uc.lexicalIndex != nil {
		configured = append(configured, domain.ChannelLexical)
	}
	if uc.embedder != nil && uc.denseIndex != nil {
		configured = append(configured, domain.ChannelSemantic)
	}
	if len(requested) == 0 {
		return configured, nil
	}

	out := make([]domain.Channel, 0, len(configured))
	for _, ch := range configured {
		if slices.Contains(requested, ch) {
			out = append(out, ch)
		}
	}
	if len(out) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidConfiguration, "channels", fmt.Errorf("none of %v is configured", requested))
	}
	return out, nil
}

// fillPayloads resolves payloads the channels did not carry. Failures leave payloads empty.
func (uc *SearchUseCase) fillPayloads(ctx context.Context, requestID string, results []domain.FusedCandidate) {
	if uc.payloads == nil {
		return
	}
	var missing []string
	for _, c := range results {
		if len(c.Payload) == 0 {
			missing = append(missing, c.ID)
		}
	}
	if len(missing) == 0 {
		return
	}
	payloads, err := uc.payloads.GetPayloads(ctx, missing)
	if err != nil {
		slog.Warn("payload_lookup_failed", "request_id", requestID, "ids", len(missing), "error", err)
		return
	}
	for i := range results {
		if len(results[i].Payload) == 0 {
			results[i].Payload = payloads[results[i].ID]
		}
	}
}

func (uc *SearchUseCase) observeSearch(outcome string, start time.Time, returned int) {
	if uc.observer == nil {
		return
	}
	uc.observer.ObserveSearch(outcome, uc.now().Sub(start), returned)
}
