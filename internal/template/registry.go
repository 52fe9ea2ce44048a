package template

import (
	"sync"

	"fileops.io/notifyd/internal/core"
)

// Registry maps notification types to default templates and holds custom
// templates registered by id. Registering reuses of the same id overwrite;
// everything else is additive.
type Registry struct {
	mu       sync.RWMutex
	byID     map[string]*Template
	defaults map[core.Type]*Template
}

// NewRegistry creates a registry preloaded with the platform's default
// templates.
func NewRegistry() *Registry {
	r := &Registry{
		byID:     map[string]*Template{},
		defaults: map[core.Type]*Template{},
	}
	for _, tpl := range defaultTemplates() {
		r.defaults[core.Type(tpl.Type)] = tpl
		r.byID[tpl.ID] = tpl
	}
	return r
}

// Register adds or replaces a template by id.
func (r *Registry) Register(tpl *Template) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[tpl.ID] = tpl
}

// Get returns the template with the given id.
func (r *Registry) Get(id string) (*Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tpl, ok := r.byID[id]
	return tpl, ok
}

// ForType returns the default template for a notification type.
func (r *Registry) ForType(t core.Type) (*Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tpl, ok := r.defaults[t]
	return tpl, ok
}

// Resolve picks the template for a send: an explicit template id wins, then
// the type default. The second return is false when neither exists and the
// caller should fall back to raw title/message.
func (r *Registry) Resolve(templateID string, t core.Type) (*Template, bool) {
	if templateID != "" {
		if tpl, ok := r.Get(templateID); ok {
			return tpl, true
		}
	}
	return r.ForType(t)
}

func defaultTemplates() []*Template {
	return []*Template{
		{
			ID:       "default-file-uploaded",
			Type:     string(core.TypeFileUploaded),
			Subject:  "File uploaded: {{fileName}}",
			Body:     "Your file {{fileName}} ({{fileSize}}) was uploaded successfully.",
			HTMLBody: "<p>Your file <strong>{{fileName}}</strong> ({{fileSize}}) was uploaded successfully.</p>",
		},
		{
			ID:       "default-file-shared",
			Type:     string(core.TypeFileShared),
			Subject:  "{{sharedBy}} shared a file with you",
			Body:     "{{sharedBy}} shared {{fileName}} with you.",
			HTMLBody: "<p>{{sharedBy}} shared <strong>{{fileName}}</strong> with you.</p>",
		},
		{
			ID:       "default-processing-complete",
			Type:     string(core.TypeProcessingComplete),
			Subject:  "Processing complete: {{fileName}}",
			Body:     "Processing of {{fileName}} finished ({{jobType}}).",
			HTMLBody: "<p>Processing of <strong>{{fileName}}</strong> finished ({{jobType}}).</p>",
		},
		{
			ID:       "default-processing-failed",
			Type:     string(core.TypeProcessingFailed),
			Subject:  "Processing failed: {{fileName}}",
			Body:     "Processing of {{fileName}} failed: {{error}}",
			HTMLBody: "<p>Processing of <strong>{{fileName}}</strong> failed: {{error}}</p>",
		},
		{
			ID:       "default-storage-quota",
			Type:     string(core.TypeStorageQuota),
			Subject:  "Storage quota warning",
			Body:     "You have used {{usedPercent}}% of your storage quota.",
			HTMLBody: "<p>You have used <strong>{{usedPercent}}%</strong> of your storage quota.</p>",
		},
		{
			ID:       "default-security-alert",
			Type:     string(core.TypeSecurityAlert),
			Subject:  "Security alert",
			Body:     "{{alertMessage}}",
			HTMLBody: "<p>{{alertMessage}}</p>",
		},
		{
			ID:       "default-system-alert",
			Type:     string(core.TypeSystemAlert),
			Subject:  "{{title}}",
			Body:     "{{message}}",
			HTMLBody: "<p>{{message}}</p>",
		},
	}
}
