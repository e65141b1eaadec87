package render

// Message templates use Go text/template syntax. Notification templates
// produce Telegram HTML, so user-supplied values go through esc.

const welcomeTemplate = `🚚 Welcome to the China → Russia delivery service!

This bot collects the details we need to price your goods and the logistics.

Once your request arrives, a manager will contact you to clarify the details.

⬇️`

const previewTemplate = `📋 REQUEST PREVIEW

✅ Please check your details:
{{range .Lines}}
{{.Label}}: {{.Value}}
{{- end}}

Is everything correct?`

const correctionTemplate = `✏️ Choose what you want to fix:

Tap the field you want to change:`

const acknowledgmentTemplate = `✅ Request received!

📞 A manager will contact you shortly to clarify the details.

Thank you for choosing our service! 🚚`

const cancelledTemplate = `❌ Request cancelled.

You can start a new one at any time.`

const helpPromptTemplate = `👨‍💼 Describe your question and a manager will get back to you.`

const helpThanksTemplate = `✅ Thank you! Your message has been passed to a manager. We will contact you shortly.`

const adminTemplate = `🛠️ Admin panel

🆔 Your id: {{.UserID}}
👥 Operator targets: {{len .Targets}}
{{- range .Targets}}
• {{.}}
{{- end}}`

const requestNotificationTemplate = `🆕 <b>NEW DELIVERY REQUEST</b>

📅 Date: {{.Timestamp}}
👤 User: {{esc .Username}}
🆔 ID: {{.UserID}}

📋 <b>REQUEST DETAILS:</b>
{{- range $i, $l := .Lines}}
{{if last $i $.Lines}}└{{else}}├{{end}} {{esc $l.Label}}: {{esc $l.Value}}
{{- end}}

⚡ Contact the customer as soon as possible!`

const helpNotificationTemplate = `🆘 <b>HELP REQUEST</b>

📅 Date: {{.Timestamp}}
👤 Name: {{esc .DisplayName}}
📱 Username: @{{esc .Username}}
🆔 ID: {{.UserID}}

💬 Message:
{{esc .Message}}`

const submissionBlockTemplate = `==================================================
Kind: {{.Kind}}
Date: {{.Timestamp}}
ID: {{.UserID}}
Username: {{.Username}}
{{- range .Lines}}
{{.Label}}: {{.Value}}
{{- end}}
{{- if .PhotoPath}}
Photo file: {{.PhotoPath}}
{{- end}}
==================================================
`

const notificationBlockTemplate = `
============================================================
Date: {{.Timestamp}}
Title: {{.Title}}
Text:
{{.Text}}
============================================================
`
