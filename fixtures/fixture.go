package fixtures

const ProjectAPIKey = "phc_test_project_key"
const PersonalAPIKey = "phx_test_personal_key"

// DefinitionsJson is a realistic local evaluation response: a plain boolean
// flag, a percentage rollout, a multivariate experiment with a variant
// override group, a flag gated on person properties, an inactive flag and a
// flag depending on a cohort that cannot be evaluated locally.
const DefinitionsJson = `
{
	"flags": [
		{
			"key": "beta-features",
			"active": true,
			"filters": {
				"groups": [{
					"properties": [{
						"key": "email",
						"value": "@flagpole.io",
						"operator": "icontains",
						"type": "person"
					}],
					"rollout_percentage": 100
				}]
			}
		},
		{
			"key": "half-rollout",
			"active": true,
			"filters": {
				"groups": [{
					"properties": [],
					"rollout_percentage": 50
				}]
			}
		},
		{
			"key": "homepage-experiment",
			"active": true,
			"filters": {
				"groups": [
					{
						"properties": [{
							"key": "plan",
							"value": "enterprise",
							"operator": "exact",
							"type": "person"
						}],
						"rollout_percentage": 100,
						"variant": "variant-b"
					},
					{
						"properties": [],
						"rollout_percentage": 100
					}
				],
				"multivariate": {
					"variants": [
						{"key": "control", "rollout_percentage": 33},
						{"key": "variant-a", "rollout_percentage": 33},
						{"key": "variant-b", "rollout_percentage": 34}
					]
				},
				"payloads": {
					"control": {"layout": "classic"},
					"variant-b": {"layout": "hero"}
				}
			}
		},
		{
			"key": "simple-flag",
			"active": true,
			"filters": {
				"groups": [{
					"properties": [],
					"rollout_percentage": 100
				}],
				"payloads": {
					"true": {"color": "green"}
				}
			}
		},
		{
			"key": "inactive-flag",
			"active": false,
			"filters": {
				"groups": [{
					"properties": [],
					"rollout_percentage": 100
				}]
			}
		},
		{
			"key": "cohort-flag",
			"active": true,
			"filters": {
				"groups": [{
					"properties": [{
						"key": "id",
						"value": 42,
						"operator": "exact",
						"type": "cohort"
					}],
					"rollout_percentage": 100
				}]
			}
		}
	],
	"group_type_mapping": {"0": "company"},
	"cohorts": {
		"42": {"type": "AND", "values": []}
	}
}
`

// DecideResponseJson is what the remote decide endpoint answers for a subject
// in the experiment's variant-b bucket.
const DecideResponseJson = `
{
	"featureFlags": {
		"beta-features": true,
		"half-rollout": false,
		"homepage-experiment": "variant-b",
		"simple-flag": true,
		"cohort-flag": true
	},
	"featureFlagPayloads": {
		"homepage-experiment": {"layout": "hero"},
		"simple-flag": {"color": "green"}
	}
}
`

// EventBatchResponseJson acknowledges an event batch.
const EventBatchResponseJson = `{"status": 1}`
