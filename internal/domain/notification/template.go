package notification

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

// WelcomeSubject はお礼メールの件名。
const WelcomeSubject = "Welcome Back to Volunteer Hub!"

const welcomeHTML = `<div style="font-family: Arial, sans-serif; background-color: #f8f9fa; padding: 30px;">
  <div style="max-width: 600px; margin: auto; background-color: #ffffff; border-radius: 15px; box-shadow: 0 0 10px rgba(0,0,0,0.1); overflow: hidden;">
    <div style="background-color: #FF7F50; padding: 20px; text-align: center; color: #fff;">
      <h1>Welcome Back!</h1>
    </div>
    <div style="padding: 20px; color: #333;">
      <p>Hello <strong>{{.Name}}</strong>,</p>
      <p>Thank you for volunteering for "<strong>{{.PostTitle}}</strong>". We're excited to have you on board!</p>
      <p>Check out new volunteer opportunities and make a difference today.</p>
      <a href="{{.DashboardURL}}" style="display: inline-block; margin-top: 20px; background-color: #FF7F50; color: #fff; padding: 10px 20px; border-radius: 8px; text-decoration: none;">Go to Dashboard</a>
    </div>
    <div style="background-color: #f1f1f1; padding: 10px; text-align: center; font-size: 12px; color: #555;">
      &copy; {{.Year}} Volunteer Hub. All rights reserved.
    </div>
  </div>
</div>`

// Rendered は送信できる形に整えたメール本文。
type Rendered struct {
	Subject string
	HTML    string
}

// Renderer は通知ジョブを HTML メールに変換する。
type Renderer struct {
	welcome      *template.Template
	dashboardURL string
}

// NewRenderer はテンプレートを解析して Renderer を返す。
func NewRenderer(dashboardURL string) (*Renderer, error) {
	tmpl, err := template.New("welcome").Parse(welcomeHTML)
	if err != nil {
		return nil, fmt.Errorf("parse welcome template: %w", err)
	}
	return &Renderer{welcome: tmpl, dashboardURL: dashboardURL}, nil
}

// Render はジョブの種類に応じた件名と本文を返す。
func (r *Renderer) Render(job *Job) (*Rendered, error) {
	if job == nil || job.To == "" {
		return nil, ErrEmptyRecipient
	}
	if job.Kind != KindWelcome {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, job.Kind)
	}

	year := job.EnqueuedAt.Year()
	if job.EnqueuedAt.IsZero() {
		year = time.Now().Year()
	}
	var buf bytes.Buffer
	err := r.welcome.Execute(&buf, struct {
		Name         string
		PostTitle    string
		DashboardURL string
		Year         int
	}{
		Name:         job.Name,
		PostTitle:    job.PostTitle,
		DashboardURL: r.dashboardURL,
		Year:         year,
	})
	if err != nil {
		return nil, fmt.Errorf("render welcome mail: %w", err)
	}
	return &Rendered{Subject: WelcomeSubject, HTML: buf.String()}, nil
}
