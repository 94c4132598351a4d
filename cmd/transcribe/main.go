package main

import (
	"os"

	"whisper-transcribe/cmd/transcribe/cmd"

	// Import engines to register them
	_ "whisper-transcribe/internal/app/api/faster_whisper"
	_ "whisper-transcribe/internal/app/api/openai/whisper"
	_ "whisper-transcribe/internal/app/api/whisper_cpp"
)

func main() {
	os.Exit(cmd.Execute())
}
