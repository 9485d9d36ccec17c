// facectl prepares submission payloads and runs the pipeline locally.
package main

func main() {
	Execute()
}
