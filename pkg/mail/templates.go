package mail

import (
	"bytes"
	_ "embed"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// OptOutSubject is the subject line of every opt-out request.
const OptOutSubject = "Request to Opt-Out and Delete Personal Information (CPRA)"

// OptOutParams are the values substituted into the opt-out letter.
type OptOutParams struct {
	BrokerName string
	FullName   string
	Address    string
	Email      string
	Phone      string
}

var (
	optOutTemplate = template.New("optout").Funcs(sprig.TxtFuncMap())

	//go:embed templates/optout.txt
	optOutTemplateRaw string
)

func init() {
	if _, err := optOutTemplate.Parse(optOutTemplateRaw); err != nil {
		panic(err)
	}
}

func render(t *template.Template, p any) (string, error) {
	b := bytes.Buffer{}
	err := t.Execute(&b, p)
	return b.String(), err
}

// RenderOptOut renders the letter body only.
func RenderOptOut(p OptOutParams) (string, error) {
	return render(optOutTemplate, p)
}

// ComposeOptOut builds the complete message addressed to a broker.
// Field values are not validated here; profiles are checked on load.
func ComposeOptOut(to string, p OptOutParams) (Message, error) {
	body, err := RenderOptOut(p)
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: OptOutSubject, Body: body}, nil
}
