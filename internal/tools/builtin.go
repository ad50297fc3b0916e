package tools

// Tool names used across the gateway. The registry below is the single
// source of truth for their parameter shapes.
const (
	PlanSteps           = "plan_steps"
	ListFiles           = "list_files"
	ReadFile            = "read_file"
	CreateOrUpdateFiles = "create_or_update_files"
	DeleteFile          = "delete_file"
	RunBuildAndLint     = "run_build_and_lint"
	FinishTask          = "finish_task"
	Chat                = "chat"
	SearchPexels        = "search_pexels_for_images"
)

// Builtin returns the fixed registry of the nine agent tools.
func Builtin() *Registry {
	reg, err := NewRegistry([]Definition{
		{
			Name:        PlanSteps,
			Description: "Declare the ordered list of steps you will take to satisfy the user's request. Must be called before any file is modified.",
			Fields: []Field{
				{Name: "steps", Type: "array", Items: "string", Description: "Ordered, human-readable plan steps.", Required: true},
			},
		},
		{
			Name:        ListFiles,
			Description: "List every file path currently in the project.",
		},
		{
			Name:        ReadFile,
			Description: "Read the full content of one project file.",
			Fields: []Field{
				{Name: "path", Type: "string", Description: "Project-relative file path.", Required: true},
			},
		},
		{
			Name:        CreateOrUpdateFiles,
			Description: "Create new files or overwrite existing ones. Each entry maps a path to its complete new content.",
			Fields: []Field{
				{Name: "files", Type: "object", AdditionalValues: "string", Description: "Map of file path to full file content.", Required: true},
			},
		},
		{
			Name:        DeleteFile,
			Description: "Remove one file from the project.",
			Fields: []Field{
				{Name: "path", Type: "string", Description: "Project-relative file path.", Required: true},
			},
		},
		{
			Name:        RunBuildAndLint,
			Description: "Compile the project and run the linter. Must succeed before the task can be finished.",
		},
		{
			Name:        FinishTask,
			Description: "Mark the task complete. Only call after run_build_and_lint has succeeded.",
			Fields: []Field{
				{Name: "summary", Type: "string", Description: "Short summary of what was changed.", Required: true},
			},
		},
		{
			Name:        Chat,
			Description: "Reply to the user conversationally without modifying the project.",
			Fields: []Field{
				{Name: "response", Type: "string", Description: "Message shown to the user.", Required: true},
			},
		},
		{
			Name:        SearchPexels,
			Description: "Search Pexels for stock photos matching a query.",
			Fields: []Field{
				{Name: "query", Type: "string", Description: "Search terms.", Required: true},
				{Name: "orientation", Type: "string", Description: "Optional orientation filter: landscape, portrait or square."},
			},
		},
	})
	if err != nil {
		// The builtin set is static; a duplicate here is a programming error.
		panic(err)
	}
	return reg
}
