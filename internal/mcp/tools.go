package mcp

import "github.com/mark3labs/mcp-go/mcp"

// translateSessionTool defines the translate_session MCP tool.
var translateSessionTool = mcp.NewTool("translate_session",
	mcp.WithDescription("Translate the code ingested for a session into another language. Returns the migrated files as JSON."),
	mcp.WithString("session",
		mcp.Required(),
		mcp.Description("Session whose ingested code is translated"),
	),
	mcp.WithString("target_language",
		mcp.Description("Language to translate into, e.g. typescript, python3, postgresql"),
	),
	mcp.WithString("source_language",
		mcp.Description("Language of the ingested code; detected when omitted"),
	),
	mcp.WithString("command",
		mcp.Description("Free-form instruction such as \"convert this to TypeScript\""),
	),
	mcp.WithString("user",
		mcp.Description("Restrict context to chunks owned by this user"),
	),
)

// searchSessionTool defines the search_session MCP tool.
var searchSessionTool = mcp.NewTool("search_session",
	mcp.WithDescription("Search a session's ingested code semantically. Returns the most relevant chunks."),
	mcp.WithString("session",
		mcp.Required(),
		mcp.Description("Session to search"),
	),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language search query"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of results to return (default 10)"),
	),
)

// detectLanguageTool defines the detect_language MCP tool.
var detectLanguageTool = mcp.NewTool("detect_language",
	mcp.WithDescription("Detect the language and framework of a file from its name and content."),
	mcp.WithString("filename",
		mcp.Description("File name, used for the extension"),
	),
	mcp.WithString("content",
		mcp.Description("File content"),
	),
)

// jobStatusTool defines the job_status MCP tool.
var jobStatusTool = mcp.NewTool("job_status",
	mcp.WithDescription("Get the status and progress of an ingestion job."),
	mcp.WithString("job_id",
		mcp.Required(),
		mcp.Description("Job id returned when the job was created"),
	),
)
