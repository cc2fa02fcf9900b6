// Package main is the entry point for UsageMonitor.
//
//	@title						UsageMonitor API
//	@version					1.0
//	@description				Prepaid API usage metering: management API for the account, payments, request logs, analytics and reports.
//
//	@BasePath					/
//
//	@securityDefinitions.apikey	AdminAuth
//	@in							header
//	@name						Authorization
//	@description				Session token from /api/usage-monitor/admin/login, as "Bearer <token>"
package main

func main() {
	Execute()
}
