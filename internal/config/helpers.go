package config

import (
	"cascade-agent/pkg/agent"
	"cascade-agent/pkg/params"
)

// ParamsOrDefault returns the hydrated parameters, or the built-in defaults
// when no params file is referenced.
func (c *Config) ParamsOrDefault() *params.Parameters {
	if c.Params.Value != nil {
		return c.Params.Value
	}
	return params.Defaults()
}

// AgentOrDefault returns the hydrated agent settings or the loop defaults.
func (c *Config) AgentOrDefault() *agent.Config {
	if c.Agent.Value != nil {
		return c.Agent.Value
	}
	return agent.DefaultConfig()
}
