// Package knowchain embeds the knowchain ingestion and chat pipeline in a Go
// program, without running the HTTP server.
//
// Content is indexed into named collections stored in Redis with the query
// engine. Questions are answered from the nearest fragments of one collection
// and the recent turns of a conversation.
//
//	client, _ := knowchain.New(ctx,
//	    knowchain.WithRedis("localhost:6379", ""),
//	    knowchain.WithOpenAI(os.Getenv("OPENAI_API_KEY"), "", "text-embedding-3-small", "gpt-4o-mini"),
//	)
//	defer client.Close()
//
//	report, _ := client.Index("docs").Web(ctx, "https://go.dev/doc/")
//	answer, _ := client.Chat("docs").Ask(ctx, "session-1", "How do I install Go?")
package knowchain
