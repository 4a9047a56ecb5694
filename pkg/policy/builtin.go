package policy

// BuiltinPolicies returns the policies every engine starts with. They only
// warn, so they never change whether a monitor is admitted.
func BuiltinPolicies() []Policy {
	return []Policy{
		secureURIPolicy(),
		checkFrequencyPolicy(),
	}
}

// secureURIPolicy flags monitors that check plain-HTTP targets.
func secureURIPolicy() Policy {
	return Policy{
		Name:        "secure-uri",
		Description: "Monitored URIs should use https",
		Severity:    SeverityWarning,
		Enabled:     true,
		Rego: `package monitor.policies.secure_uri

import rego.v1

deny contains violation if {
	uri := input.monitor.Uri
	startswith(lower(uri), "http://")
	violation := {
		"message": sprintf("%s is not served over https", [uri]),
		"property": "Uri",
	}
}
`,
	}
}

// checkFrequencyPolicy flags monitors that check less often than hourly.
func checkFrequencyPolicy() Policy {
	return Policy{
		Name:        "check-frequency",
		Description: "Monitors should check at least hourly",
		Severity:    SeverityWarning,
		Enabled:     true,
		Rego: `package monitor.policies.check_frequency

import rego.v1

deny contains violation if {
	input.monitor.Frequency > 60
	violation := {
		"message": sprintf("checking every %d minutes may miss outages", [input.monitor.Frequency]),
		"property": "Frequency",
	}
}
`,
	}
}
