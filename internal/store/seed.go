package store

// The stock sentence pool. Populates an empty database and the
// in-memory store.
var seedSentences = []Sentence{
	{Content: "The quick brown fox jumps over the lazy dog.", Difficulty: "easy"},
	{Content: "Hello world! This is a simple test.", Difficulty: "easy"},
	{Content: "I love coding every day.", Difficulty: "easy"},
	{Content: "The sun is shining bright today.", Difficulty: "easy"},
	{Content: "Practice makes perfect every time.", Difficulty: "easy"},

	{Content: "Web development includes both frontend and backend technologies.", Difficulty: "medium"},
	{Content: "JavaScript is one of the most popular programming languages.", Difficulty: "medium"},
	{Content: "React, Vue, and Angular are popular JavaScript frameworks.", Difficulty: "medium"},
	{Content: "Database management requires careful planning and optimization.", Difficulty: "medium"},
	{Content: "Agile methodology emphasizes iterative development and collaboration.", Difficulty: "medium"},

	{Content: "Microservices architecture involves decomposing applications into loosely coupled services, each responsible for a specific business capability.", Difficulty: "hard"},
	{Content: "Asynchronous programming enables applications to handle multiple operations concurrently without blocking the main execution thread.", Difficulty: "hard"},
	{Content: "Cryptographic protocols ensure data confidentiality, integrity, and authentication in distributed systems across untrusted networks.", Difficulty: "hard"},
	{Content: "Container orchestration platforms like Kubernetes automate deployment, scaling, and management of containerized applications in production environments.", Difficulty: "hard"},
	{Content: "Machine learning algorithms leverage statistical techniques to enable computers to learn patterns from data without explicit programming instructions.", Difficulty: "hard"},
}
