package main

import (
	"context"
	"vjudge-crawler/cmd/vjudge-crawler/commands"
	"vjudge-crawler/lib/osutil"
)

func main() {
	ctx, cancel := osutil.SignalContext(context.Background())
	defer cancel()
	commands.ExecuteContext(ctx)
}
