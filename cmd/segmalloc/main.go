// Command segmalloc replays allocation traces against a segregated-fit heap.
package main

func main() {
	execute()
}
