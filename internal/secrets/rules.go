package secrets

// DefaultRules returns the rules applied to note content.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "aws-access-key-id",
			Description: "AWS Access Key ID",
			Pattern:     `\b(?:A3T[A-Z0-9]|AKIA|AGPA|AIDA|AROA|AIPA|ANPA|ANVA|ASIA)[A-Z0-9]{16}\b`,
		},
		{
			ID:          "aws-secret-access-key",
			Description: "AWS Secret Access Key",
			Pattern:     `(?i)(?:aws_secret_access_key|aws_secret_key|secret_access_key)\s*[:=]\s*['"]?[A-Za-z0-9/+=]{40}['"]?`,
			Keywords:    []string{"secret"},
		},
		{
			ID:          "private-key",
			Description: "PEM private key block",
			Pattern:     `(?s)-----BEGIN (?:RSA |DSA |EC |OPENSSH |PGP |ENCRYPTED )?PRIVATE KEY(?: BLOCK)?-----.*?-----END (?:RSA |DSA |EC |OPENSSH |PGP |ENCRYPTED )?PRIVATE KEY(?: BLOCK)?-----`,
		},
		{
			ID:          "github-token",
			Description: "GitHub token",
			Pattern:     `\b(?:ghp|gho|ghu|ghs|ghr)_[A-Za-z0-9]{36}\b`,
		},
		{
			ID:          "github-fine-grained",
			Description: "GitHub fine-grained personal access token",
			Pattern:     `\bgithub_pat_[A-Za-z0-9_]{22,}\b`,
		},
		{
			ID:          "gitlab-token",
			Description: "GitLab personal access token",
			Pattern:     `\bglpat-[A-Za-z0-9\-]{20,}\b`,
		},
		{
			ID:          "slack-token",
			Description: "Slack token",
			Pattern:     `\bxox[baprs]-[A-Za-z0-9-]{10,}\b`,
		},
		{
			ID:          "llm-api-key",
			Description: "OpenAI or Anthropic API key",
			Pattern:     `\bsk-(?:ant-|proj-)?[A-Za-z0-9_\-]{20,}\b`,
		},
		{
			ID:          "bearer-token",
			Description: "HTTP bearer credential",
			Pattern:     `(?i)\bbearer\s+[A-Za-z0-9\-._~+/]{16,}=*`,
			Keywords:    []string{"bearer"},
		},
		{
			ID:          "generic-api-key",
			Description: "API key assignment",
			Pattern:     `(?i)\b(?:api[_-]?key|apikey|access[_-]?token|auth[_-]?token)\s*[:=]\s*['"]?[A-Za-z0-9_\-]{16,}['"]?`,
			Keywords:    []string{"key", "token"},
		},
		{
			ID:          "generic-password",
			Description: "Password or secret assignment",
			Pattern:     `(?i)\b(?:password|passwd|pwd|secret)\s*[:=]\s*['"]?[^\s'"]{8,}['"]?`,
			Keywords:    []string{"pass", "pwd", "secret"},
		},
	}
}
