package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/cosmetology-assistant/internal/clinic"
	"github.com/wolfman30/cosmetology-assistant/internal/intent"
	"github.com/wolfman30/cosmetology-assistant/internal/retrieval"
	"github.com/wolfman30/cosmetology-assistant/pkg/logging"
)

const (
	noResultsContext = "⚠️ В базе знаний " + NotFoundMarker + " по вашему запросу. Пожалуйста, ответь на основе общих знаний о косметологии и услугах клиники."
	describeFailure  = "К сожалению, не удалось загрузить информацию о процедуре."
)

// Classifier assigns intents to free text.
type Classifier interface {
	Classify(ctx context.Context, userID int64, text string) intent.Intent
}

// History reads and appends logged exchanges.
type History interface {
	Recent(ctx context.Context, userID int64, limit int) ([]Turn, error)
	Save(ctx context.Context, t Turn) error
}

// Answerer produces the final reply text.
type Answerer interface {
	Generate(ctx context.Context, req GenerateRequest) string
}

// Options tunes the message pipeline.
type Options struct {
	TopK             int
	HistorySize      int
	MaxContextLength int
}

// Service is the free-text question pipeline.
type Service struct {
	classifier Classifier
	searcher   retrieval.Searcher
	answerer   Answerer
	history    History
	clinic     clinic.Info
	opts       Options
	logger     *logging.Logger
}

func NewService(classifier Classifier, searcher retrieval.Searcher, answerer Answerer, history History, info clinic.Info, opts Options, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = 5
	}
	if opts.MaxContextLength <= 0 {
		opts.MaxContextLength = 2000
	}
	return &Service{
		classifier: classifier,
		searcher:   searcher,
		answerer:   answerer,
		history:    history,
		clinic:     info,
		opts:       opts,
		logger:     logger,
	}
}

// Input is one inbound free-text message.
type Input struct {
	UserID  int64
	Text    string
	Profile *Profile
}

// Result is the pipeline output.
type Result struct {
	Text          string
	Intent        intent.Intent
	SearchResults int
}

// ProcessMessage classifies, retrieves, generates and logs. Collaborator
// failures degrade the answer but never the reply itself.
func (s *Service) ProcessMessage(ctx context.Context, in Input) Result {
	logger := s.logger.ForUser(in.UserID)
	clean := SanitizeForModel(in.Text)
	if clean == "" {
		return Result{Text: s.emptyReply(), Intent: intent.General}
	}

	got := s.classifier.Classify(ctx, in.UserID, in.Text)

	var historyText string
	if s.history != nil {
		turns, err := s.history.Recent(ctx, in.UserID, s.opts.HistorySize)
		if err != nil {
			logger.Warn("conversation: history unavailable", "error", err)
		}
		historyText = FormatHistory(turns, s.opts.MaxContextLength)
	}

	var profile retrieval.Profile
	if in.Profile != nil {
		profile = retrieval.Profile{SkinType: in.Profile.SkinType, AgeGroup: in.Profile.AgeGroup}
	}
	docs, err := s.searcher.Search(ctx, clean, retrieval.BuildFilters(in.Text, profile), s.opts.TopK)
	if err != nil {
		logger.Warn("conversation: search failed, answering without context", "error", err)
		docs = nil
	}

	contextText := noResultsContext
	if len(docs) > 0 {
		parts := make([]string, 0, len(docs))
		for i, d := range docs {
			parts = append(parts, fmt.Sprintf("Документ %d: %s\n%s", i+1, d.Title, d.Content))
		}
		contextText = strings.Join(parts, "\n")
	}
	if historyText != "" {
		contextText = historyText + "\n\n" + contextText
	}

	answer := s.answerer.Generate(ctx, GenerateRequest{
		UserMessage: clean,
		Context:     contextText,
		Intent:      got,
		Profile:     in.Profile,
		Fast:        got == intent.Pricing || got == intent.Aftercare,
	})

	if s.history != nil {
		turn := Turn{UserID: in.UserID, Message: clean, Response: answer, Intent: got, SearchResults: len(docs)}
		if err := s.history.Save(ctx, turn); err != nil {
			logger.Warn("conversation: failed to log turn", "error", err)
		}
	}
	logger.Info("conversation: message processed", "intent", got, "search_results", len(docs))
	return Result{Text: answer, Intent: got, SearchResults: len(docs)}
}

// DescribeProcedure answers a catalog knowledge-base query with the fast
// model. It does not touch history.
func (s *Service) DescribeProcedure(ctx context.Context, query string, profile *Profile) string {
	docs, err := s.searcher.Search(ctx, query, nil, 2)
	if err != nil {
		s.logger.Warn("conversation: procedure lookup failed", "error", err)
		return describeFailure
	}
	contextText := "Информация в базе знаний не найдена."
	if len(docs) > 0 {
		parts := make([]string, 0, len(docs))
		for _, d := range docs {
			parts = append(parts, d.Title+"\n"+d.Content)
		}
		contextText = strings.Join(parts, "\n\n")
	}
	return s.answerer.Generate(ctx, GenerateRequest{
		UserMessage: query,
		Context:     contextText,
		Intent:      intent.Consultation,
		Profile:     profile,
		Fast:        true,
	})
}

func (s *Service) emptyReply() string {
	return fmt.Sprintf("Напишите, пожалуйста, ваш вопрос. 📞 Телефон клиники: %s", s.clinic.Phone)
}
