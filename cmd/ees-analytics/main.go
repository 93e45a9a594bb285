package main

// main is the entry point for the ees-analytics application.
func main() {
	Execute()
}
