// Package policy evaluates Rego admission policies against website monitors
// before they are created or replaced.
//
// # Overview
//
// Each policy is a Rego v1 module that defines a "deny" set. The document
// bound to input is:
//
//	{
//	  "action":   "CREATE",
//	  "monitor":  {"Name": "homepage", "Uri": "https://example.org", ...},
//	  "previous": {...}
//	}
//
// Property names follow the resource schema and the ApiKey property is
// never present. A deny entry is either a message string or an object with
// "message", "property" and "severity" keys.
//
// Violations with severity error or critical block admission and surface as
// InvalidRequest. Warnings are reported but never block. The built-in
// policies only warn.
//
// # Policy Files
//
// Policies are loaded from .rego files (named after the file) or .json
// files holding a Policy object. A Rego file can set its severity in the
// leading comment block:
//
//	# Monitors must target the corporate domain.
//	# severity: error
//	package monitor.policies.domain
//
//	import rego.v1
//
//	deny contains "Uri must be on example.org" if {
//		not endswith(input.monitor.Uri, ".example.org")
//	}
//
// Engine.Watch reloads the files whenever they change.
package policy
