package delivery

import (
	"fmt"
	"html/template"
	"strings"

	"tldrchinese/internal/domain"
)

// emailTemplate mirrors the production newsletter layout: header with the
// web link, one card per article, footer with attribution and unsubscribe.
var emailTemplate = template.Must(template.New("newsletter").Parse(`
<div style="max-width: 600px; margin: 0 auto; padding: 20px; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;">
    <div style="text-align: center; margin-bottom: 30px;">
        <h1 style="color: #2c3e50; font-size: 24px; margin: 0; padding: 20px 0; border-bottom: 2px solid #eee;">
            TLDR Chinese 每日科技新闻
        </h1>
        <p style="color: #7f8c8d; margin-top: 10px;">{{.Date}}</p>
        <p style="color: #666; margin-top: 20px; font-size: 14px; line-height: 1.6;">
            若想获得更好阅读体验以及中英双语内容，请访问：
            <a href="{{.FrontendURL}}/newsletter/{{.Date}}"
               style="color: #3498db; text-decoration: none; font-weight: 500;"
               target="_blank">{{.FrontendHost}}/newsletter/{{.Date}}</a>
        </p>
    </div>
    <div style="margin-top: 30px;">
    {{- range .Sections}}
        <div style="margin-bottom: 40px;">
            <h2 style="color: #2c3e50; font-size: 20px; margin: 0 0 20px 0; padding-bottom: 10px; border-bottom: 2px solid #eee;">
                {{.Name}}
            </h2>
            {{- range .Articles}}
            <div style="background: #fff; border-radius: 8px; margin-bottom: 25px; padding: 20px; box-shadow: 0 1px 3px rgba(0,0,0,0.1);">
                {{- if .ImageURL}}
                <div style="text-align: center; margin: 15px 0;">
                    <img src="{{.ImageURL}}"
                         style="max-width: 100%; height: 150px; object-fit: cover; border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1);"
                         alt="{{.Title}}" />
                </div>
                {{- end}}
                <h3 style="color: #2c3e50; font-size: 18px; margin: 0 0 15px 0; line-height: 1.4;">
                    {{.Title}}
                </h3>
                <p style="color: #34495e; line-height: 1.6; margin: 0 0 15px 0; font-size: 16px;">
                    {{.Body}}
                </p>
                <div style="text-align: right;">
                    <a href="{{.URL}}"
                       style="display: inline-block; color: #3498db; text-decoration: none; font-weight: 500; font-size: 14px;"
                       target="_blank">阅读原文 →</a>
                </div>
            </div>
            {{- end}}
        </div>
    {{- end}}
    </div>
    <div style="margin-top: 40px; padding-top: 20px; border-top: 1px solid #eee; text-align: center; color: #7f8c8d;">
        <p style="margin: 0 0 10px 0; font-size: 14px;">感谢订阅 TLDR Chinese！</p>
        <p style="margin: 0 0 10px 0; font-size: 12px; color: #95a5a6;">
            版权来自于 TLDR TECH NEWS @
            <a href="https://tldr.tech/" style="color: #3498db; text-decoration: none;" target="_blank">https://tldr.tech/</a>
        </p>
        <p style="margin: 10px 0; font-size: 12px;">
            <a href="{{.BackendURL}}/api/unsubscribe/%recipient.id%" style="color: #3498db; text-decoration: none;">取消订阅</a>
        </p>
    </div>
</div>`))

type emailArticle struct {
	Title    string
	Body     template.HTML
	URL      string
	ImageURL string
}

type emailSection struct {
	Name     string
	Articles []emailArticle
}

type emailData struct {
	Date         string
	FrontendURL  string
	FrontendHost string
	BackendURL   string
	Sections     []emailSection
}

// RenderNewsletterHTML produces the email body for one digest.
func RenderNewsletterHTML(digest *domain.Digest, frontendURL, backendURL string) (string, error) {
	frontendURL = strings.TrimSuffix(frontendURL, "/")
	backendURL = strings.TrimSuffix(backendURL, "/")

	data := emailData{
		Date:         digest.Date.Format(domain.DateLayout),
		FrontendURL:  frontendURL,
		FrontendHost: strings.TrimPrefix(strings.TrimPrefix(frontendURL, "https://"), "http://"),
		BackendURL:   backendURL,
	}

	for _, section := range digest.Sections {
		es := emailSection{Name: section.Name}
		for _, article := range section.Articles {
			es.Articles = append(es.Articles, emailArticle{
				Title:    article.Title,
				Body:     template.HTML(article.Body), // stored markup, already from the source page
				URL:      article.URL,
				ImageURL: article.ImageURL,
			})
		}
		data.Sections = append(data.Sections, es)
	}

	var sb strings.Builder
	if err := emailTemplate.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render newsletter: %w", err)
	}

	return sb.String(), nil
}
