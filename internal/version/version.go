package version

// Current is the engine version reported by the CLI.
const Current = "0.1.0"
