package catalog

var builtinEndpoints = []Endpoint{
	// Entra ID
	{Name: "entra_signins", Path: "/auditLogs/signIns", Service: "entra_id", TimeField: "createdDateTime"},
	{Name: "entra_audit", Path: "/auditLogs/directoryAudits", Service: "entra_id", TimeField: "activityDateTime"},
	{Name: "entra_users", Path: "/users", Service: "entra_id"},

	// Defender
	{Name: "defender_alerts", Path: "/security/alerts", Service: "defender", TimeField: "createdDateTime"},
	{Name: "defender_incidents", Path: "/security/incidents", Service: "defender", TimeField: "createdDateTime"},
	{Name: "defender_secureScores", Path: "/security/secureScores", Service: "defender", TimeField: "createdDateTime"},

	// Intune
	{Name: "intune_devices", Path: "/deviceManagement/managedDevices", Service: "intune"},
	{Name: "intune_apps", Path: "/deviceManagement/mobileApps", Service: "intune"},
	{Name: "intune_policies", Path: "/deviceManagement/deviceCompliancePolicies", Service: "intune"},

	// Purview
	{Name: "purview_retention", Path: "/security/retentionEvents", Service: "purview", TimeField: "createdDateTime"},
	{Name: "purview_labels", Path: "/informationProtection/threatAssessmentRequests", Service: "purview", TimeField: "createdDateTime"},

	// Compliance
	{Name: "compliance_audit", Path: "/auditLogs/directoryAudits", Service: "compliance", TimeField: "activityDateTime"},
	{Name: "compliance_reports", Path: "/reports", Service: "compliance"},

	// Exchange Online
	{Name: "exchange_messages", Path: "/me/messages", Service: "exchange", TimeField: "receivedDateTime", Delegated: true},
	{Name: "exchange_mailbox", Path: "/me/mailboxSettings", Service: "exchange", Delegated: true},

	// SharePoint Online
	{Name: "sharepoint_sites", Path: "/sites", Service: "sharepoint"},
	{Name: "sharepoint_drives", Path: "/me/drives", Service: "sharepoint", Delegated: true},

	// Teams
	{Name: "teams_chats", Path: "/me/chats", Service: "teams", Delegated: true},
	{Name: "teams_meetings", Path: "/me/onlineMeetings", Service: "teams", Delegated: true},
}

var builtinPermissions = map[string][]string{
	"entra_id":   {"AuditLog.Read.All", "User.Read.All", "Directory.Read.All"},
	"defender":   {"SecurityEvents.Read.All", "SecurityIncident.Read.All"},
	"intune":     {"DeviceManagementServiceConfig.Read.All", "DeviceManagementManagedDevices.Read.All"},
	"purview":    {"InformationProtectionPolicy.Read.All", "ThreatAssessment.Read.All"},
	"compliance": {"AuditLog.Read.All", "Reports.Read.All"},
	"exchange":   {"Mail.Read", "MailboxSettings.Read"},
	"sharepoint": {"Sites.Read.All", "Files.Read.All"},
	"teams":      {"Chat.Read", "OnlineMeetings.Read"},
}

// Default returns a fresh catalog holding the built-in tables.
func Default() *Catalog {
	c := &Catalog{
		endpoints:   make(map[string]Endpoint, len(builtinEndpoints)),
		permissions: make(map[string][]string, len(builtinPermissions)),
	}
	for _, e := range builtinEndpoints {
		c.endpoints[e.Name] = e
	}
	for svc, perms := range builtinPermissions {
		c.permissions[svc] = append([]string(nil), perms...)
	}
	return c
}
