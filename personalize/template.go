package personalize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mohitkumar/flowup/model"
	"github.com/oliveagle/jsonpath"
)

var tokenRegexp = regexp.MustCompile("{(.*?)}")

// TemplateRenderer resolves {$.path} tokens in a template against the
// prospect document (top level fields plus the attributes map). Tokens that
// do not resolve are left in place so a broken template is visible rather
// than silently blanked.
type TemplateRenderer struct {
}

var _ Personalizer = new(TemplateRenderer)

func NewTemplateRenderer() *TemplateRenderer {
	return &TemplateRenderer{}
}

func (t *TemplateRenderer) Personalize(template string, prospect *model.Prospect, ch model.Channel) (string, error) {
	doc := prospectDocument(prospect)
	tokens := tokenRegexp.FindAllString(template, -1)
	result := template
	for _, token := range tokens {
		tmatch := strings.ReplaceAll(token, "{", "")
		tmatch = strings.ReplaceAll(tmatch, "}", "")
		if !strings.HasPrefix(tmatch, "$") {
			continue
		}
		value, err := jsonpath.JsonPathLookup(doc, tmatch)
		if err != nil {
			return template, model.PersonalizationError{Message: fmt.Sprintf("token %s: %v", token, err)}
		}
		result = strings.ReplaceAll(result, token, fmt.Sprintf("%v", value))
	}
	return result, nil
}

func prospectDocument(prospect *model.Prospect) map[string]any {
	doc := map[string]any{
		"email":       prospect.Email,
		"phone":       prospect.Phone,
		"linkedinUrl": prospect.LinkedinUrl,
		"status":      string(prospect.Status),
	}
	for k, v := range prospect.Attributes {
		doc[k] = v
	}
	return doc
}
