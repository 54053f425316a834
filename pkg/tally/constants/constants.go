/*
Copyright 2025 The Tally Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package constants

import (
	"github.com/sirupsen/logrus"
)

const (
	// DefaultLogLevel is the default global verbosity
	DefaultLogLevel = logrus.WarnLevel

	// DefaultRecipePath is the recipe path, given relative to the
	// bake context directory
	DefaultRecipePath = "Dockerfile"

	// ConfigDir holds the global config and the cached OAuth token,
	// relative to the user's home directory
	ConfigDir = ".tally"

	DefaultConfigFile      = "config"
	DefaultTokenFile       = "token.json"
	DefaultCredentialsFile = "credentials.json"

	// DefaultCalendarID is the calendar audited when none is configured
	DefaultCalendarID = "primary"

	DefaultBakeTagPolicy = TagPolicyFingerprint

	// TagPolicyFingerprint tags images with the digest of their build inputs
	TagPolicyFingerprint = "fingerprint"
	TagPolicyGitCommit   = "gitCommit"
	TagPolicyDateTime    = "dateTime"
	TagPolicyEnvTemplate = "envTemplate"

	// FingerprintLabel marks baked images with the digest of the inputs
	// that produced them
	FingerprintLabel = "tally.chronotools.dev/fingerprint"

	// GCSBucketSuffix is appended to the project ID to form the default
	// Cloud Build staging bucket name
	GCSBucketSuffix = "_cloudbuild"

	DefaultCloudBuildDockerImage = "gcr.io/cloud-builders/docker"

	// DefaultAuditConcurrency bounds the per-day event queries issued
	// in parallel during a week audit
	DefaultAuditConcurrency = 3

	Windows = "windows"
)

// AllTagPolicies lists the accepted values for the bake --tag-policy flag.
var AllTagPolicies = []string{
	TagPolicyFingerprint,
	TagPolicyGitCommit,
	TagPolicyDateTime,
	TagPolicyEnvTemplate,
}

// Phase names the top level task a log entry belongs to.
type Phase string

const (
	Audit   = Phase("Audit")
	Bake    = Phase("Bake")
	Auth    = Phase("Auth")
	DevLoop = Phase("DevLoop")

	// SubtaskIDNone marks log entries not tied to a numbered subtask
	SubtaskIDNone = "-1"
)
