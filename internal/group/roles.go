// Package group runs a group agent: a fixed software-team pipeline in which
// each hired role streams one document into a shared workspace.
package group

import "github.com/user/chatverse/internal/schema"

const (
	RoleProductManager = "Product Manager"
	RoleArchitect      = "Architect"
	RoleProjectManager = "Project Manager"
	RoleEngineer       = "Engineer"
	RoleQAEngineer     = "QA Engineer"
)

type role struct {
	name        string
	file        string
	instruction string
}

var roles = map[string]role{
	RoleProductManager: {
		name: RoleProductManager,
		file: "prd.md",
		instruction: "Write a product requirements document for the idea. Cover the product goals, " +
			"user stories, a competitive analysis, the requirement pool with priorities and open questions.",
	},
	RoleArchitect: {
		name: RoleArchitect,
		file: "system_design.md",
		instruction: "Design the system described by the requirements. Cover the implementation approach, " +
			"the list of files, the data structures and interfaces, and the program call flow.",
	},
	RoleProjectManager: {
		name: RoleProjectManager,
		file: "tasks.md",
		instruction: "Break the design into tasks. List the required packages, a logic analysis per file " +
			"and the task list ordered by dependency.",
	},
	RoleEngineer: {
		name: RoleEngineer,
		file: "code.md",
		instruction: "Implement the tasks. Output every file as a fenced code block preceded by its file name.",
	},
	RoleQAEngineer: {
		name: RoleQAEngineer,
		file: "test_plan.md",
		instruction: "Write a test plan for the implementation followed by the test code, one fenced block per file.",
	},
}

const reviewFile = "code_review.md"

const reviewInstruction = "Review the code above. List each defect with the file it is in and the fix, " +
	"then give the corrected code for every file you changed."

// RolesToHire returns the roles a run staffs, in the order they speak.
func RolesToHire(s schema.GroupSetting) []string {
	hired := []string{RoleProductManager, RoleArchitect, RoleProjectManager}
	if s.Implement || s.CodeReview {
		hired = append(hired, RoleEngineer)
	}
	if s.RunTests {
		hired = append(hired, RoleQAEngineer)
	}
	return hired
}
