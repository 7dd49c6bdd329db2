package tools

import (
	"context"
	"time"
)

// RegisterDefaults installs the stock capability set. Executors here are
// simulated backends; production deployments swap them via Register.
func RegisterDefaults(r *Registry) {
	defaults := []Capability{
		{
			Name:                "get_customer_profile",
			Description:         "Retrieve customer profile information",
			RequiredPermissions: []string{"read_customer_data"},
			Timeout:             5 * time.Second,
			RetryAttempts:       2,
		},
		{
			Name:                "get_account_services",
			Description:         "Get customer's subscribed services",
			RequiredPermissions: []string{"read_customer_data"},
			Timeout:             5 * time.Second,
			RetryAttempts:       2,
		},
		{
			Name:                "search_knowledge_base",
			Description:         "Search internal knowledge base",
			RequiredPermissions: []string{"read_knowledge_base"},
			Timeout:             10 * time.Second,
			RetryAttempts:       2,
		},
		{
			Name:                "get_troubleshooting_guide",
			Description:         "Retrieve troubleshooting procedures",
			RequiredPermissions: []string{"read_knowledge_base"},
			Timeout:             8 * time.Second,
			RetryAttempts:       2,
		},
		{
			Name:                "create_ticket",
			Description:         "Create a new support ticket",
			RequiredPermissions: []string{"create_tickets"},
			Timeout:             10 * time.Second,
			RetryAttempts:       3,
		},
		{
			Name:                "update_ticket_status",
			Description:         "Update ticket status",
			RequiredPermissions: []string{"update_tickets"},
			Timeout:             5 * time.Second,
			RetryAttempts:       2,
		},
		{
			Name:                "run_diagnostic_test",
			Description:         "Run system diagnostics",
			RequiredPermissions: []string{"execute_diagnostics"},
			Timeout:             30 * time.Second,
			RetryAttempts:       1,
		},
		{
			Name:                "check_system_logs",
			Description:         "Analyze system logs",
			RequiredPermissions: []string{"read_system_logs"},
			Timeout:             15 * time.Second,
			RetryAttempts:       2,
		},
		{
			Name:                "get_billing_information",
			Description:         "Retrieve billing details",
			RequiredPermissions: []string{"read_billing_data"},
			Timeout:             10 * time.Second,
			RetryAttempts:       2,
		},
		{
			Name:                "process_payment",
			Description:         "Process customer payment",
			RequiredPermissions: []string{"process_payments"},
			Timeout:             20 * time.Second,
			RetryAttempts:       3,
			RatePerMinute:       30,
		},
		{
			Name:                "send_customer_notification",
			Description:         "Send notification to customer",
			RequiredPermissions: []string{"send_notifications"},
			Timeout:             5 * time.Second,
			RetryAttempts:       2,
			RatePerMinute:       60,
		},
		{
			Name:                "transfer_to_human_agent",
			Description:         "Queue conversation for a human agent",
			RequiredPermissions: []string{"transfer_conversations"},
			Timeout:             10 * time.Second,
			RetryAttempts:       2,
		},
		{
			Name:                "log_interaction_metrics",
			Description:         "Log conversation metrics",
			RequiredPermissions: []string{"write_analytics"},
			Timeout:             5 * time.Second,
			RetryAttempts:       1,
		},
	}

	for _, c := range defaults {
		r.Register(c, simulatedExecutor(c.Name))
	}
}

// simulatedExecutor stands in for the external backend of a capability.
func simulatedExecutor(name string) Executor {
	return func(ctx context.Context, params map[string]any) (map[string]any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return map[string]any{
			"success":    true,
			"capability": name,
			"params":     params,
		}, nil
	}
}
