// Copyright 2025 Leeaandrob
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package narrative

import "fmt"

const systemPrompt = "You are a technical analyst that generates structured JSON summaries of development conversations. Always respond with valid JSON only."

const promptTemplate = `Analyze this conversation between a developer and Claude Code AI assistant. Generate a structured narrative that captures the essence of the work done.

<conversation>
%s
</conversation>

Generate a JSON response with the following structure:
{
  "summary": "A 2-3 sentence executive summary of what was accomplished",
  "problem": "The initial problem or objective (if any)",
  "solution": "The solution implemented (if any)",
  "decisions": ["List of key technical decisions made"],
  "files_modified": ["List of files created or modified"],
  "key_insights": ["Important learnings or patterns identified"],
  "tags": ["Relevant tags for semantic search"],
  "complexity": "low|medium|high",
  "outcome": "success|partial|failed|ongoing"
}

Important:
- Be concise but comprehensive
- Focus on technical details and decisions
- Extract file paths mentioned in the conversation
- Identify patterns that could help future development
- Generate tags that would help find this conversation later

Respond ONLY with valid JSON, no additional text.`

func userPrompt(conversation string) string {
	return fmt.Sprintf(promptTemplate, conversation)
}
