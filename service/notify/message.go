package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"strings"

	"github.com/viant/mediaflow/model"
)

const dateLayout = "2006-01-02"

// content is the data every message template renders
type content struct {
	Name       string
	Number     string
	Requester  string
	Department string
	StartDate  string
	EndDate    string
	Link       string
	Links      *model.ActionLinks
	ApproveAs  string
	By         string
	Notes      string
}

type message struct {
	subject string
	body    *template.Template
}

func newMessage(name, subject, body string) *message {
	return &message{subject: subject, body: template.Must(template.New(name).Parse(strings.TrimSpace(body)))}
}

func (m *message) render(c *content) (string, string, error) {
	buf := &bytes.Buffer{}
	if err := m.body.Execute(buf, c); err != nil {
		return "", "", fmt.Errorf("failed to render %s: %w", m.body.Name(), err)
	}
	return fmt.Sprintf(m.subject, c.Number), buf.String(), nil
}

const actionLinks = `{{if .Links}}
<p><a href="{{.Links.Approve}}">{{.ApproveAs}}</a> | <a href="{{.Links.Reject}}">Reject</a></p>{{end}}`

var (
	requesterSubmitted = newMessage("requesterSubmitted", "Your request %s was submitted", `
<p>Dear {{.Name}},</p>
<p>Your request <b>{{.Number}}</b> has been submitted.</p>
<p><a href="{{.Link}}">Track it here</a></p>`)

	managerReview = newMessage("managerReview", "Request %s awaiting your approval", `
<p>Dear {{.Name}},</p>
<p>Request <b>{{.Number}}</b> from {{.Requester}}{{if .Department}} ({{.Department}}){{end}} awaits your approval.</p>
<p>Requested access: {{if .StartDate}}{{.StartDate}}{{else}}immediately{{end}} to {{.EndDate}}</p>`+actionLinks+`
<p><a href="{{.Link}}">Open Approvals</a></p>`)

	requesterManagerApproved = newMessage("requesterManagerApproved", "Update: Request %s approved by Manager", `
<p>Dear {{.Name}},</p>
<p>Your request <b>{{.Number}}</b> was approved by your Line Manager and forwarded to Security.</p>
<p><a href="{{.Link}}">View Details</a></p>`)

	securityReview = newMessage("securityReview", "Request %s awaiting Security review", `
<p>Dear {{.Name}},</p>
<p>Request <b>{{.Number}}</b> is ready for your review.</p>`+actionLinks+`
<p><a href="{{.Link}}">Open Security Inbox</a></p>`)

	requesterSecurityApproved = newMessage("requesterSecurityApproved", "Update: Request %s approved by Security", `
<p>Dear {{.Name}},</p>
<p>Your request <b>{{.Number}}</b> was approved by Security and forwarded to IT.</p>
<p><a href="{{.Link}}">View Details</a></p>`)

	itAction = newMessage("itAction", "Request %s awaiting IT action", `
<p>Dear {{.Name}},</p>
<p>Request <b>{{.Number}}</b> was approved by Security and awaits IT action.</p>`+actionLinks+`
<p><a href="{{.Link}}">Open IT Inbox</a></p>`)

	requesterCompleted = newMessage("requesterCompleted", "Completed: Request %s", `
<p>Dear {{.Name}},</p>
<p>Your request <b>{{.Number}}</b> has been completed{{if .EndDate}} until <b>{{.EndDate}}</b>{{end}}.</p>
<p><a href="{{.Link}}">View Details</a></p>`)

	requesterRejected = newMessage("requesterRejected", "Request %s was rejected", `
<p>Dear {{.Name}},</p>
<p>Your request <b>{{.Number}}</b> was rejected by {{.By}}.</p>
<p><b>Notes:</b> {{if .Notes}}{{.Notes}}{{else}}(no notes){{end}}</p>
<p><a href="{{.Link}}">View Details</a></p>`)
)

// links builds the application URLs referenced by messages
type links struct {
	baseURL string
}

func (l links) details(id int64) string {
	return l.baseURL + "/Requests/Details/" + strconv.FormatInt(id, 10)
}

func (l links) inbox(stage model.Stage) string {
	switch stage {
	case model.StageManager:
		return l.baseURL + "/Manager"
	case model.StageSecurity:
		return l.baseURL + "/Security"
	case model.StageIT:
		return l.baseURL + "/IT"
	}
	return l.baseURL
}
