package services

import "testing"

func TestParseTutorResponse(t *testing.T) {
	if _, err := parseTutorResponse("the model rambled instead of answering"); err == nil {
		t.Fatal("malformed output must be an error, not a null result")
	}

	// Valid JSON without the required fields is the "no tutoring" path.
	resp, err := parseTutorResponse(`{"hint": "think about the coronary arteries"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != nil {
		t.Fatalf("expected nil response, got %+v", resp)
	}

	resp, err = parseTutorResponse(`{"correct_answer": "Right coronary artery", "why_correct": "It supplies the SA node in most people."}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp == nil || resp.CorrectAnswer != "Right coronary artery" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}
