// Charter generates, redlines and approves AI governance policies for
// schools and districts, and maps governance documents onto compliance
// frameworks.
//
// Usage:
//
//	# Generate a policy from a library template and an organization profile
//	charter generate --template ai-acceptable-use --profile district.yaml
//
//	# Propose and apply an edited revision
//	charter redline POLICY_ID --file edited.md --reason "board feedback" --apply
//
//	# Drive the approval workflow
//	charter workflow start POLICY_ID
//	charter workflow act POLICY_ID APPROVAL_ID --action approve --role superintendent --name "Dr. Lee"
//
//	# Map a document onto the compliance catalogs
//	charter map handbook.txt --student-data
//
//	# Run escalation sweeps, library reloads and the metrics endpoint
//	charter run --config charter.yaml
package main

func main() {
	Execute()
}
