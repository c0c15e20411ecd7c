// Package advisor delegates the cycle decision to a language model. The
// model sees the portfolio, a per-instrument indicator digest and the risk
// limits, and answers with a single structured buy, sell or hold.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"cascade-agent/pkg/llm"
	"cascade-agent/pkg/strategy"
	"cascade-agent/pkg/trade"
)

// Advisor implements strategy.Advisor on top of an LLM client.
type Advisor struct {
	cfg           *Config
	llm           llm.LLMClient
	tpl           *llm.PromptTemplate
	conversations ConversationRecorder
	now           func() time.Time
}

var _ strategy.Advisor = (*Advisor)(nil)

// New constructs an Advisor. An empty cfg.PromptTemplate selects the built-in
// prompt.
func New(cfg *Config, client llm.LLMClient, opts ...Option) (*Advisor, error) {
	if cfg == nil {
		return nil, errors.New("advisor: config is required")
	}
	if client == nil {
		return nil, errors.New("advisor: llm client is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tpl, err := loadTemplate(cfg.PromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("advisor: %w", err)
	}
	a := &Advisor{
		cfg:           cfg,
		llm:           client,
		tpl:           tpl,
		conversations: noopConversationRecorder{},
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Advise renders the prompt, asks the model and validates its reply. A hold
// reply returns a nil instruction.
func (a *Advisor) Advise(ctx context.Context, req *strategy.AdvisoryRequest) (*trade.Instruction, error) {
	if req == nil || req.Snapshot == nil || req.Params == nil {
		return nil, errors.New("advisor: request needs a snapshot and parameters")
	}
	prompt, err := a.tpl.Render(buildPromptData(a.cfg, req, a.now()))
	if err != nil {
		return nil, fmt.Errorf("advisor: %w", err)
	}

	chatReq := &llm.ChatRequest{
		Model:       a.cfg.Model,
		Temperature: a.cfg.Temperature,
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
	}
	callCtx, cancel := context.WithTimeout(ctx, a.cfg.DecisionTimeout)
	defer cancel()

	var out decisionContract
	resp, err := a.llm.ChatStructured(callCtx, chatReq, &out)
	a.record(ctx, prompt, resp, err)
	if err != nil {
		return nil, fmt.Errorf("advisor: llm: %w", err)
	}

	instr, err := out.toInstruction(a.cfg, req)
	if err != nil {
		return nil, fmt.Errorf("advisor: rejected reply: %w", err)
	}
	if instr == nil {
		logx.WithContext(ctx).Infof("advisor: hold (%s)", out.Reason)
		return nil, nil
	}
	logx.WithContext(ctx).Infof("advisor: %s", instr)
	return instr, nil
}

func (a *Advisor) record(ctx context.Context, prompt string, resp *llm.ChatResponse, callErr error) {
	rec := ConversationRecord{
		Model:        a.cfg.Model,
		PromptDigest: a.tpl.Digest(),
		Prompt:       prompt,
		Timestamp:    a.now().UTC(),
	}
	if resp != nil {
		if resp.Model != "" {
			rec.Model = resp.Model
		}
		rec.Response = resp.Content()
		rec.PromptTokens = resp.Usage.PromptTokens
		rec.CompletionTokens = resp.Usage.CompletionTokens
	}
	if callErr != nil {
		rec.Err = callErr.Error()
	}
	if err := a.conversations.RecordConversation(ctx, rec); err != nil {
		logx.WithContext(ctx).Errorf("advisor: record conversation: %v", err)
	}
}
