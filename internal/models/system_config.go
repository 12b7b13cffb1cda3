package models

// SystemConfig is the operator-editable bot configuration kept in the structured store
type SystemConfig struct {
	AIEnabled         bool     `json:"aiEnabled"`
	ModelName         string   `json:"modelName,omitempty"`
	SystemPrompt      string   `json:"systemPrompt,omitempty"`
	HandoverKeywords  []string `json:"handoverKeywords,omitempty"`
	AutoSwitchMinutes int      `json:"autoSwitchMinutes,omitempty"`
	AdminUserID       string   `json:"adminUserId,omitempty"`
}
