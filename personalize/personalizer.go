package personalize

import (
	"github.com/mohitkumar/flowup/logger"
	"github.com/mohitkumar/flowup/model"
	"go.uber.org/zap"
)

// Personalizer turns a step template into final text for one prospect. AI
// backed implementations live outside the engine; the engine only depends on
// this interface.
type Personalizer interface {
	Personalize(template string, prospect *model.Prospect, ch model.Channel) (string, error)
}

// FailOpen guards dispatch against personalization outages: any error from
// the wrapped personalizer yields the unmodified template.
type FailOpen struct {
	delegate Personalizer
}

func NewFailOpen(delegate Personalizer) *FailOpen {
	return &FailOpen{delegate: delegate}
}

func (f *FailOpen) Personalize(template string, prospect *model.Prospect, ch model.Channel) (string, error) {
	text, err := f.delegate.Personalize(template, prospect, ch)
	if err != nil {
		logger.Warn("personalization failed, falling back to raw template", zap.String("prospect", prospect.Id), zap.Error(err))
		return template, nil
	}
	return text, nil
}
